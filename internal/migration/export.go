package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/events"
	"github.com/lherron/hmp/internal/id"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/store"
)

// Options carries the collaborators of an export or import run.
type Options struct {
	// Settings is exported when the organization has no stored settings.
	Settings legacy.Settings
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Settings == (legacy.Settings{}) {
		o.Settings = legacy.DefaultSettings()
	}
	return o
}

// attachmentURL is where the file of a stored attachment is served.
func attachmentURL(taskID, attachmentID string) string {
	return fmt.Sprintf("/api/v1/tasks/%s/attachments/%s/file", taskID, attachmentID)
}

// Export serializes the organization, as visible to the acting user, into a
// legacy document. Every server identifier is replaced by the row's legacy
// identifier; references that cannot be resolved are emitted as null.
func Export(ctx context.Context, s *store.Store, organizationID, userID string, opts Options) (*legacy.Document, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithFields(logrus.Fields{"organization": organizationID, "user": userID})

	c, err := resolveCaller(ctx, s, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.BackfillLegacyIDs(ctx, organizationID); err != nil {
		return nil, err
	}

	e := &exporter{
		store:  s,
		org:    organizationID,
		caller: c,
		ids:    id.NewMap(id.ServerToLegacy),
		doc:    legacy.New(opts.Now()),
		log:    log,
	}
	e.doc.Pricing.Defaults = nil

	steps := []func(context.Context) error{
		e.exportStructure,
		e.exportStaff,
		e.exportTechnicians,
		e.exportBlockedSlots,
		e.exportSessions,
		e.exportTasks,
		e.exportReservations,
		e.exportContracts,
		e.exportPricing,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, err
		}
	}
	if err := e.exportSettings(ctx, opts.Settings); err != nil {
		return nil, err
	}
	e.doc.ActiveHotelID = e.activeHotel()
	e.doc.Touch(opts.Now())

	counts := e.doc.Counts()
	log.WithField("scoped", c.scoped()).Infof("exported %d hotels, %d tasks", counts[legacy.CollectionHotels], counts[legacy.CollectionTasks])
	if err := s.Events.LogMigrationRun(ctx, organizationID, userID, events.EventExported, counts); err != nil {
		log.WithError(err).Warn("failed to record export")
	}
	return e.doc, nil
}

type exporter struct {
	store  *store.Store
	org    string
	caller *caller
	ids    *id.Map
	doc    *legacy.Document
	log    logrus.FieldLogger

	// hotelOrder keeps the legacy hotel ids in creation order.
	hotelOrder []string
}

// legacyOf returns the legacy id of a row, falling back to its server id,
// and records the pair in the map.
func (e *exporter) legacyOf(kind id.Kind, serverID string, legacyID *string) string {
	out := serverID
	if legacyID != nil && *legacyID != "" {
		out = *legacyID
	}
	e.ids.Set(kind, serverID, out)
	return out
}

func boolPtr(b bool) *bool { return &b }

func (e *exporter) exportStructure(ctx context.Context) error {
	hotels, err := e.store.Hotels.ListHotels(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, h := range hotels {
		hid := e.legacyOf(id.KindHotel, h.ID, h.LegacyID)
		e.hotelOrder = append(e.hotelOrder, hid)

		buildings, err := e.store.Hotels.ListBuildings(ctx, e.org, h.ID)
		if err != nil {
			return err
		}
		out := legacy.Hotel{ID: hid, Name: h.Name, Buildings: make([]legacy.Building, 0, len(buildings))}
		for _, b := range buildings {
			building, err := e.exportBuilding(ctx, b)
			if err != nil {
				return err
			}
			out.Buildings = append(out.Buildings, building)
		}
		e.doc.Hotels[hid] = out
	}
	return nil
}

func (e *exporter) exportBuilding(ctx context.Context, b domain.Building) (legacy.Building, error) {
	out := legacy.Building{ID: e.legacyOf(id.KindBuilding, b.ID, b.LegacyID), Name: b.Name, Notes: b.Notes}

	floors, err := e.store.Hotels.ListFloors(ctx, e.org, b.ID)
	if err != nil {
		return out, err
	}
	out.Floors = make([]legacy.Floor, 0, len(floors))
	for _, f := range floors {
		floor := legacy.Floor{
			ID:           e.legacyOf(id.KindFloor, f.ID, f.LegacyID),
			NameOrNumber: legacy.Text(f.NameOrNumber),
			SortOrder:    legacy.NumFromInt(f.SortOrder),
			Notes:        f.Notes,
			Rooms:        []legacy.Room{},
			Spaces:       []legacy.Space{},
		}

		rooms, err := e.store.Hotels.ListRooms(ctx, e.org, f.ID)
		if err != nil {
			return out, err
		}
		for _, r := range rooms {
			floor.Rooms = append(floor.Rooms, legacy.Room{
				ID:                e.legacyOf(id.KindRoom, r.ID, r.LegacyID),
				RoomNumber:        legacy.Text(r.RoomNumber),
				Active:            boolPtr(r.Active),
				Surface:           string(r.Surface),
				Sqft:              legacy.NumFromFloat(r.Sqft),
				LastCleaned:       legacy.InstantOf(r.LastCleanedAt),
				CleaningFrequency: legacy.NumFromInt(r.CleaningFrequencyDays),
				Notes:             r.Notes,
			})
		}

		spaces, err := e.store.Hotels.ListSpaces(ctx, e.org, f.ID)
		if err != nil {
			return out, err
		}
		for _, sp := range spaces {
			floor.Spaces = append(floor.Spaces, legacy.Space{
				ID:                e.legacyOf(id.KindSpace, sp.ID, sp.LegacyID),
				Name:              sp.Name,
				Type:              sp.Type,
				Active:            boolPtr(sp.Active),
				Sqft:              legacy.NumFromFloat(sp.Sqft),
				CleaningFrequency: legacy.NumFromInt(sp.CleaningFrequencyDays),
			})
		}
		out.Floors = append(out.Floors, floor)
	}
	return out, nil
}

func (e *exporter) exportStaff(ctx context.Context) error {
	staff, err := e.store.Staff.List(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, m := range staff {
		sid := e.legacyOf(id.KindStaff, m.ID, m.LegacyID)
		e.doc.Staff[sid] = legacy.StaffMember{
			ID:        sid,
			Token:     m.Token,
			HotelID:   e.ids.Ref(id.KindHotel, m.HotelID),
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Phone:     legacy.Text(m.Phone),
			Notes:     m.Notes,
			Active:    boolPtr(m.Active),
			CreatedAt: domain.FormatTime(m.CreatedAt),
		}
	}
	return nil
}

// exportTechnicians always fills the technician map, so that sessions of a
// scoped caller still reference their technician, but only emits the
// technicians themselves to organization-wide callers.
func (e *exporter) exportTechnicians(ctx context.Context) error {
	technicians, err := e.store.Technicians.List(ctx, e.org)
	if err != nil {
		return err
	}
	for _, t := range technicians {
		tid := e.legacyOf(id.KindTechnician, t.ID, t.LegacyID)
		if e.caller.scoped() {
			continue
		}
		e.doc.Technicians[tid] = legacy.Technician{
			ID:        tid,
			Name:      t.Name,
			Phone:     legacy.Text(t.Phone),
			Notes:     t.Notes,
			Active:    boolPtr(t.Active),
			CreatedAt: domain.FormatTime(t.CreatedAt),
		}
	}
	return nil
}

func (e *exporter) exportBlockedSlots(ctx context.Context) error {
	if e.caller.scoped() {
		return nil
	}
	slots, err := e.store.BlockedSlots.List(ctx, e.org)
	if err != nil {
		return err
	}
	for _, b := range slots {
		e.doc.Availability.Blocked = append(e.doc.Availability.Blocked, legacy.BlockedSlot{
			ID:        e.legacyOf(id.KindBlockedSlot, b.ID, b.LegacyID),
			Date:      b.Date,
			Start:     b.Start,
			End:       b.End,
			Note:      b.Note,
			CreatedAt: domain.FormatTime(b.CreatedAt),
		})
	}
	return nil
}

func (e *exporter) exportSessions(ctx context.Context) error {
	sessions, err := e.store.Sessions.List(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		sid := e.legacyOf(id.KindSession, sess.ID, sess.LegacyID)
		e.doc.Sessions[sid] = legacy.Session{
			ID:           sid,
			Status:       sess.Status,
			CreatedAt:    domain.FormatTime(sess.CreatedAt),
			HotelID:      e.ids.Ref(id.KindHotel, sess.HotelID),
			RoomIDs:      e.ids.RefList(id.KindRoom, sess.RoomIDs),
			Date:         sess.Date,
			Start:        sess.Start,
			End:          sess.End,
			TechnicianID: e.ids.RefPtr(id.KindTechnician, sess.TechnicianID),
		}
	}
	return nil
}

// locationPreview joins the first three non-empty labels. Without any
// non-empty label it is the first label.
func locationPreview(locations []legacy.Location) string {
	labels := make([]string, 0, 3)
	for _, l := range locations {
		if l.Label == "" {
			continue
		}
		labels = append(labels, l.Label)
		if len(labels) == 3 {
			break
		}
	}
	if len(labels) > 0 {
		return strings.Join(labels, ", ")
	}
	if len(locations) > 0 {
		return locations[0].Label
	}
	return ""
}

func (e *exporter) exportTasks(ctx context.Context) error {
	tasks, err := e.store.Tasks.List(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, t := range tasks {
		tid := e.legacyOf(id.KindTask, t.ID, t.LegacyID)

		locations := make([]legacy.Location, 0, len(t.Locations))
		for _, l := range t.Locations {
			locations = append(locations, legacy.Location{
				Label:   strings.TrimSpace(l.Label),
				RoomID:  e.ids.RefPtr(id.KindRoom, l.RoomID),
				SpaceID: e.ids.RefPtr(id.KindSpace, l.SpaceID),
			})
		}
		preview := locationPreview(locations)

		taskEvents := make([]legacy.TaskEvent, 0, len(t.Events))
		for _, ev := range t.Events {
			taskEvents = append(taskEvents, legacy.TaskEvent{
				ID:           ev.ID,
				At:           domain.FormatTime(ev.At),
				Action:       ev.Action,
				ActorRole:    ev.ActorRole,
				ActorStaffID: e.ids.RefPtr(id.KindStaff, ev.ActorStaffID),
				Note:         ev.Note,
				Patch:        ev.Patch,
			})
		}

		attachments := make([]legacy.Attachment, 0, len(t.Attachments))
		for _, a := range t.Attachments {
			out := legacy.Attachment{
				ID:           a.ID,
				At:           domain.FormatTime(a.At),
				Name:         a.Name,
				Mime:         a.Mime,
				DataURL:      a.DataURL,
				ActorRole:    a.ActorRole,
				ActorStaffID: e.ids.RefPtr(id.KindStaff, a.ActorStaffID),
			}
			if a.StoragePath != nil && *a.StoragePath != "" {
				url := attachmentURL(t.ID, a.ID)
				out.URL = &url
			}
			attachments = append(attachments, out)
		}

		e.doc.Tasks[tid] = legacy.Task{
			ID:              tid,
			HotelID:         e.ids.Ref(id.KindHotel, t.HotelID),
			Category:        string(t.Category),
			Status:          string(t.Status),
			Type:            t.Type,
			Priority:        string(t.Priority),
			Locations:       locations,
			Location:        &legacy.Location{Label: preview},
			Room:            preview,
			Description:     t.Description,
			AssignedStaffID: e.ids.RefPtr(id.KindStaff, t.AssignedStaffID),
			Schedule:        t.Schedule,
			CreatedAt:       domain.FormatTime(t.CreatedAt),
			UpdatedAt:       domain.FormatTime(t.UpdatedAt),
			Events:          taskEvents,
			Attachments:     attachments,
		}
	}
	return nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatTime(*t)
	return &s
}

func (e *exporter) exportReservations(ctx context.Context) error {
	reservations, err := e.store.Reservations.List(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, r := range reservations {
		e.ids.Set(id.KindReservation, r.ID, r.ID)
		e.doc.Reservations[r.ID] = legacy.Reservation{
			ID:                    r.ID,
			Token:                 r.Token,
			StatusAdmin:           string(r.StatusAdmin),
			StatusHotel:           string(r.StatusHotel),
			CreatedAt:             domain.FormatTime(r.CreatedAt),
			ConfirmedAt:           formatTimePtr(r.ConfirmedAt),
			CancelledAt:           formatTimePtr(r.CancelledAt),
			CancelledBy:           r.CancelledBy,
			CancelReason:          r.CancelReason,
			RequiresAdminApproval: r.RequiresAdminApproval,
			HotelID:               e.ids.Ref(id.KindHotel, r.HotelID),
			RoomIDs:               e.ids.RefList(id.KindRoom, r.RoomIDs),
			SpaceIDs:              e.ids.RefList(id.KindSpace, r.SpaceIDs),
			RoomNotes:             id.RemapKeys(e.ids, id.KindRoom, r.RoomNotes),
			SpaceNotes:            id.RemapKeys(e.ids, id.KindSpace, r.SpaceNotes),
			SurfaceDefault:        string(r.SurfaceDefault),
			RoomSurfaceOverrides:  id.RemapKeys(e.ids, id.KindRoom, r.RoomSurfaceOverrides),
			NotesGlobal:           r.NotesGlobal,
			NotesOrg:              r.NotesOrg,
			DurationMinutes:       legacy.NumFromInt(&r.DurationMinutes),
			ProposedDate:          r.ProposedDate,
			ProposedStart:         r.ProposedStart,
		}
	}
	return nil
}

func (e *exporter) exportContracts(ctx context.Context) error {
	contracts, err := e.store.Contracts.List(ctx, e.org, e.caller.scopeID())
	if err != nil {
		return err
	}
	for _, c := range contracts {
		cid := e.legacyOf(id.KindContract, c.ID, c.LegacyID)
		e.doc.Contracts[cid] = legacy.Contract{
			ID:                  cid,
			Token:               c.Token,
			Number:              legacy.NumFromInt(&c.Number),
			Status:              c.Status,
			CreatedAt:           domain.FormatTime(c.CreatedAt),
			HotelID:             e.ids.Ref(id.KindHotel, c.HotelID),
			HotelName:           c.HotelName,
			Contact:             c.Contact,
			Pricing:             c.Pricing,
			RoomsMinPerSession:  legacy.NumFromInt(&c.RoomsMinPerSession),
			RoomsMaxPerSession:  legacy.NumFromInt(&c.RoomsMaxPerSession),
			RoomsPerSession:     legacy.NumFromInt(&c.RoomsPerSession),
			Frequency:           c.Frequency,
			SurfaceType:         string(c.SurfaceType),
			AppliedTier:         c.AppliedTier,
			AppliedPricePerRoom: legacy.NumFromFloat(&c.AppliedPricePerRoom),
			OtherSurfaces:       c.OtherSurfaces,
			TotalPerSession:     legacy.NumFromFloat(&c.TotalPerSession),
			Notes:               c.Notes,
			SentAt:              domain.FormatTime(c.SentAt),
			SignedBy:            c.SignedBy,
			AcceptedAt:          formatTimePtr(c.AcceptedAt),
		}
	}
	return nil
}

func (e *exporter) exportPricing(ctx context.Context) error {
	if e.caller.scoped() {
		return nil
	}
	p, err := e.store.Pricing.Get(ctx, e.org)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.doc.Pricing.Defaults = &legacy.PricingDefaults{
		RoomsMinPerSession: legacy.NumFromInt(&p.RoomsMinPerSession),
		RoomsMaxPerSession: legacy.NumFromInt(&p.RoomsMaxPerSession),
		BasePrices:         p.BasePrices,
		PenaltyPrices:      p.PenaltyPrices,
		ContractPrices:     p.ContractPrices,
		AdvantagePrices:    p.AdvantagePrices,
		SqftPrices:         p.SqftPrices,
	}
	return nil
}

func (e *exporter) exportSettings(ctx context.Context, defaults legacy.Settings) error {
	e.doc.Settings = defaults
	raw, err := e.store.Orgs.Settings(ctx, e.org)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	var stored legacy.Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		e.log.WithError(err).Warn("stored settings are unreadable, exporting defaults")
		return nil
	}
	if stored.Timezone != "" {
		e.doc.Settings.Timezone = stored.Timezone
	}
	if stored.WorkHours.Start != "" {
		e.doc.Settings.WorkHours.Start = stored.WorkHours.Start
	}
	if stored.WorkHours.End != "" {
		e.doc.Settings.WorkHours.End = stored.WorkHours.End
	}
	return nil
}

func (e *exporter) activeHotel() *string {
	if e.caller.scoped() {
		return e.ids.Ref(id.KindHotel, e.caller.hotel.ID)
	}
	if ref := e.ids.RefPtr(id.KindHotel, e.caller.user.ActiveHotelID); ref != nil {
		return ref
	}
	if len(e.hotelOrder) > 0 {
		first := e.hotelOrder[0]
		return &first
	}
	return nil
}
