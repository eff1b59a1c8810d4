package migration

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/events"
	"github.com/lherron/hmp/internal/id"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/store"
)

// errOutOfScope marks a matched row that belongs to a hotel outside the
// caller's scope.
var errOutOfScope = errors.New("row belongs to another hotel")

// Import upserts a legacy document into the organization on behalf of the
// acting user. Stages run in dependency order and each stage resolves its
// references through the identifier map filled by the previous ones.
// Rows that already exist are adopted instead of duplicated, so repeating
// an import converges to the same state.
//
// A partial summary is returned together with any storage error.
func Import(ctx context.Context, s *store.Store, organizationID, userID string, doc *legacy.Document, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithFields(logrus.Fields{"organization": organizationID, "user": userID})

	c, err := resolveCaller(ctx, s, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.BackfillLegacyIDs(ctx, organizationID); err != nil {
		return nil, err
	}

	im := &importer{
		store:  s,
		org:    organizationID,
		caller: c,
		ids:    id.NewMap(id.LegacyToServer),
		now:    opts.Now,
		log:    log,
	}
	im.countInvalid(doc.Invalid)

	stages := []func(context.Context, *legacy.Document) error{
		im.importStructure,
		im.importActiveHotel,
		im.importStaff,
		im.importTechnicians,
		im.importBlockedSlots,
		im.importSessions,
		im.importTasks,
		im.importReservations,
		im.importContracts,
		im.importPricing,
		im.importSettings,
	}
	for _, stage := range stages {
		if err := stage(ctx, doc); err != nil {
			log.WithError(err).WithField("summary", im.sum.String()).Error("import aborted")
			if logErr := s.Events.LogMigrationRun(ctx, organizationID, userID, events.EventFailed, im.sum); logErr != nil {
				log.WithError(logErr).Warn("failed to record import failure")
			}
			return &im.sum, err
		}
	}

	for _, w := range im.sum.Warnings() {
		log.WithField("bucket", w.Name).Warnf("skipped %d entries", w.Count)
	}
	log.WithField("scoped", c.scoped()).Infof("import finished: %d rows created", im.sum.TotalCreated())
	if err := s.Events.LogMigrationRun(ctx, organizationID, userID, events.EventImported, im.sum); err != nil {
		log.WithError(err).Warn("failed to record import")
	}
	return &im.sum, nil
}

type importer struct {
	store  *store.Store
	org    string
	caller *caller
	ids    *id.Map
	sum    Summary
	now    func() time.Time
	log    logrus.FieldLogger
}

func (im *importer) countInvalid(invalid map[legacy.Collection]int) {
	sk := &im.sum.Skipped
	buckets := map[legacy.Collection]*int{
		legacy.CollectionHotels:          &sk.HotelsInvalid,
		legacy.CollectionContracts:       &sk.ContractsInvalid,
		legacy.CollectionSessions:        &sk.SessionsInvalid,
		legacy.CollectionReservations:    &sk.ReservationsInvalid,
		legacy.CollectionIncidents:       &sk.TasksInvalid,
		legacy.CollectionTasks:           &sk.TasksInvalid,
		legacy.CollectionStaff:           &sk.StaffInvalid,
		legacy.CollectionTechnicians:     &sk.TechniciansInvalid,
		legacy.CollectionBlocked:         &sk.BlockedSlotsInvalid,
		legacy.CollectionPricingDefaults: &sk.PricingDefaultsInvalid,
	}
	for c, n := range invalid {
		if bucket, ok := buckets[c]; ok {
			*bucket += n
		}
	}
}

// upsert resolves a row by legacy id. A matched row is passed to update
// (when given) and reported as not created; otherwise create inserts it.
// Losing a creation race to a concurrent import adopts the winner's row.
func (im *importer) upsert(ctx context.Context, kind id.Kind, legacyID string, update func(serverID string) error, create func() (string, error)) (string, bool, error) {
	serverID, err := im.store.FindByLegacy(ctx, kind, im.org, legacyID)
	if err == nil {
		return serverID, false, im.updateExisting(ctx, kind, serverID, update)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", false, err
	}

	serverID, err = create()
	if err == nil {
		return serverID, true, nil
	}
	if !db.IsUniqueViolation(err) {
		return "", false, err
	}
	winner, lookupErr := im.store.FindByLegacy(ctx, kind, im.org, legacyID)
	if lookupErr != nil {
		return "", false, err
	}
	im.log.WithField("kind", kind).Debugf("adopted concurrently created %s", legacyID)
	return winner, false, im.updateExisting(ctx, kind, winner, update)
}

func (im *importer) updateExisting(ctx context.Context, kind id.Kind, serverID string, update func(string) error) error {
	if update == nil {
		return nil
	}
	if im.caller.scoped() {
		hotelID, err := im.store.HotelOf(ctx, kind, serverID)
		if err != nil {
			return err
		}
		if hotelID != im.caller.hotel.ID {
			return errOutOfScope
		}
	}
	return update(serverID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func derefList(in []*string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := trimmed(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func (im *importer) parseTimeOr(v string, def time.Time) time.Time {
	if t, ok := domain.ParseTime(v); ok {
		return t
	}
	return def
}

func nullRaw(r json.RawMessage) json.RawMessage {
	if len(r) == 0 || string(r) == "null" {
		return nil
	}
	return r
}

func (im *importer) importStructure(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Hotels) {
		legacyID := strings.TrimSpace(key)
		if !im.caller.allows(legacyID) {
			im.sum.Skipped.HotelsOutOfScope++
			continue
		}
		h := doc.Hotels[key]
		h.Name = strings.TrimSpace(h.Name)
		if legacyID == "" || legacy.Validate(h) != nil {
			im.sum.Skipped.HotelsInvalid++
			continue
		}

		hotelID, err := im.importHotel(ctx, legacyID, h)
		if err != nil {
			return err
		}
		im.ids.Set(id.KindHotel, legacyID, hotelID)

		for _, b := range h.Buildings {
			if err := im.importBuilding(ctx, hotelID, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *importer) importHotel(ctx context.Context, legacyID string, h legacy.Hotel) (string, error) {
	if im.caller.scoped() {
		scoped := *im.caller.hotel
		scoped.Name = h.Name
		if err := im.store.Hotels.UpdateHotel(ctx, &scoped); err != nil {
			return "", err
		}
		im.sum.Skipped.Hotels++
		return scoped.ID, nil
	}

	update := func(serverID string) error {
		return im.store.Hotels.UpdateHotel(ctx, &domain.Hotel{ID: serverID, OrganizationID: im.org, Name: h.Name})
	}
	create := func() (string, error) {
		row := &domain.Hotel{OrganizationID: im.org, LegacyID: &legacyID, Name: h.Name}
		err := im.store.Hotels.CreateHotel(ctx, row)
		return row.ID, err
	}
	serverID, created, err := im.upsert(ctx, id.KindHotel, legacyID, update, create)
	if err != nil {
		return "", err
	}
	if created {
		im.sum.Created.Hotels++
	} else {
		im.sum.Skipped.Hotels++
	}
	return serverID, nil
}

func (im *importer) importBuilding(ctx context.Context, hotelID string, b legacy.Building) error {
	b.ID, b.Name, b.Notes = strings.TrimSpace(b.ID), strings.TrimSpace(b.Name), strings.TrimSpace(b.Notes)
	if legacy.Validate(b) != nil {
		im.sum.Skipped.BuildingsInvalid++
		return nil
	}

	row := &domain.Building{OrganizationID: im.org, HotelID: hotelID, LegacyID: &b.ID, Name: b.Name, Notes: b.Notes}
	serverID, created, err := im.upsert(ctx, id.KindBuilding, b.ID,
		func(serverID string) error {
			row.ID = serverID
			return im.store.Hotels.UpdateBuilding(ctx, row)
		},
		func() (string, error) {
			err := im.store.Hotels.CreateBuilding(ctx, row)
			return row.ID, err
		})
	if errors.Is(err, errOutOfScope) {
		im.sum.Skipped.BuildingsOutOfScope++
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		im.sum.Created.Buildings++
	} else {
		im.sum.Skipped.Buildings++
	}
	im.ids.Set(id.KindBuilding, b.ID, serverID)

	for _, f := range b.Floors {
		if err := im.importFloor(ctx, serverID, f); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) importFloor(ctx context.Context, buildingID string, f legacy.Floor) error {
	f.ID = strings.TrimSpace(f.ID)
	f.NameOrNumber = legacy.Text(f.NameOrNumber.String())
	if legacy.Validate(f) != nil {
		im.sum.Skipped.FloorsInvalid++
		return nil
	}

	row := &domain.Floor{
		OrganizationID: im.org,
		BuildingID:     buildingID,
		LegacyID:       &f.ID,
		NameOrNumber:   f.NameOrNumber.String(),
		SortOrder:      f.SortOrder.IntPtr(),
		Notes:          strings.TrimSpace(f.Notes),
	}
	serverID, created, err := im.upsert(ctx, id.KindFloor, f.ID,
		func(serverID string) error {
			row.ID = serverID
			return im.store.Hotels.UpdateFloor(ctx, row)
		},
		func() (string, error) {
			err := im.store.Hotels.CreateFloor(ctx, row)
			return row.ID, err
		})
	if errors.Is(err, errOutOfScope) {
		im.sum.Skipped.FloorsOutOfScope++
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		im.sum.Created.Floors++
	} else {
		im.sum.Skipped.Floors++
	}
	im.ids.Set(id.KindFloor, f.ID, serverID)

	for _, r := range f.Rooms {
		if err := im.importRoom(ctx, serverID, r); err != nil {
			return err
		}
	}
	for _, sp := range f.Spaces {
		if err := im.importSpace(ctx, serverID, sp); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) importRoom(ctx context.Context, floorID string, r legacy.Room) error {
	r.ID = strings.TrimSpace(r.ID)
	r.RoomNumber = legacy.Text(r.RoomNumber.String())
	if legacy.Validate(r) != nil {
		im.sum.Skipped.RoomsInvalid++
		return nil
	}

	row := &domain.Room{
		OrganizationID:        im.org,
		FloorID:               floorID,
		LegacyID:              &r.ID,
		RoomNumber:            r.RoomNumber.String(),
		Active:                boolOr(r.Active, true),
		Surface:               domain.NormalizeSurface(r.Surface),
		Sqft:                  r.Sqft.FloatPtr(),
		CleaningFrequencyDays: r.CleaningFrequency.IntPtr(),
		LastCleanedAt:         r.LastCleaned.Ptr(),
		Notes:                 strings.TrimSpace(r.Notes),
	}
	serverID, created, err := im.upsert(ctx, id.KindRoom, r.ID,
		func(serverID string) error {
			row.ID = serverID
			return im.store.Hotels.UpdateRoom(ctx, row)
		},
		func() (string, error) {
			err := im.store.Hotels.CreateRoom(ctx, row)
			return row.ID, err
		})
	if errors.Is(err, errOutOfScope) {
		im.sum.Skipped.RoomsOutOfScope++
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		im.sum.Created.Rooms++
	} else {
		im.sum.Skipped.Rooms++
	}
	im.ids.Set(id.KindRoom, r.ID, serverID)
	return nil
}

func (im *importer) importSpace(ctx context.Context, floorID string, sp legacy.Space) error {
	sp.ID, sp.Name = strings.TrimSpace(sp.ID), strings.TrimSpace(sp.Name)
	if legacy.Validate(sp) != nil {
		im.sum.Skipped.SpacesInvalid++
		return nil
	}

	row := &domain.Space{
		OrganizationID:        im.org,
		FloorID:               floorID,
		LegacyID:              &sp.ID,
		Name:                  sp.Name,
		Type:                  orDefault(sp.Type, "CORRIDOR"),
		Active:                boolOr(sp.Active, true),
		Sqft:                  sp.Sqft.FloatPtr(),
		CleaningFrequencyDays: sp.CleaningFrequency.IntPtr(),
	}
	serverID, created, err := im.upsert(ctx, id.KindSpace, sp.ID,
		func(serverID string) error {
			row.ID = serverID
			return im.store.Hotels.UpdateSpace(ctx, row)
		},
		func() (string, error) {
			err := im.store.Hotels.CreateSpace(ctx, row)
			return row.ID, err
		})
	if errors.Is(err, errOutOfScope) {
		im.sum.Skipped.SpacesOutOfScope++
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		im.sum.Created.Spaces++
	} else {
		im.sum.Skipped.Spaces++
	}
	im.ids.Set(id.KindSpace, sp.ID, serverID)
	return nil
}

func (im *importer) importActiveHotel(ctx context.Context, doc *legacy.Document) error {
	if im.caller.scoped() {
		return im.store.Users.SetActiveHotel(ctx, im.caller.user.ID, &im.caller.hotel.ID)
	}
	hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(doc.ActiveHotelID))
	if !ok {
		return nil
	}
	return im.store.Users.SetActiveHotel(ctx, im.caller.user.ID, &hotelID)
}

// staffToken keeps the document's token unless another staff member, in
// any organization, already holds it.
func (im *importer) staffToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return id.NewStaffToken(), nil
	}
	taken, err := im.store.Staff.TokenExists(ctx, token)
	if err != nil {
		return "", err
	}
	if taken {
		return id.NewStaffToken(), nil
	}
	return token, nil
}

func (im *importer) importStaff(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Staff) {
		m := doc.Staff[key]
		legacyID := strings.TrimSpace(key)
		hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(m.HotelID))
		if !ok {
			im.sum.Skipped.StaffMissingHotel++
			continue
		}
		if legacyID == "" {
			im.sum.Skipped.StaffInvalid++
			continue
		}

		serverID, created, err := im.upsert(ctx, id.KindStaff, legacyID, nil, func() (string, error) {
			token, err := im.staffToken(ctx, m.Token)
			if err != nil {
				return "", err
			}
			row := &domain.StaffMember{
				OrganizationID: im.org,
				HotelID:        hotelID,
				LegacyID:       &legacyID,
				Token:          token,
				FirstName:      strings.TrimSpace(m.FirstName),
				LastName:       strings.TrimSpace(m.LastName),
				Phone:          m.Phone.String(),
				Notes:          strings.TrimSpace(m.Notes),
				Active:         boolOr(m.Active, true),
				CreatedAt:      im.parseTimeOr(m.CreatedAt, time.Time{}),
			}
			err = im.store.Staff.Create(ctx, row)
			return row.ID, err
		})
		if err != nil {
			return err
		}
		if created {
			im.sum.Created.Staff++
		} else {
			im.sum.Skipped.Staff++
		}
		im.ids.Set(id.KindStaff, legacyID, serverID)
	}
	return nil
}

// importTechnicians creates technicians for organization-wide callers. For
// scoped callers technicians are out of scope, but existing ones are still
// resolved so sessions can reference them.
func (im *importer) importTechnicians(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Technicians) {
		t := doc.Technicians[key]
		legacyID := strings.TrimSpace(key)
		if legacyID == "" {
			im.sum.Skipped.TechniciansInvalid++
			continue
		}

		if im.caller.scoped() {
			im.sum.Skipped.TechniciansOutOfScope++
			serverID, err := im.store.FindByLegacy(ctx, id.KindTechnician, im.org, legacyID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			im.ids.Set(id.KindTechnician, legacyID, serverID)
			continue
		}

		serverID, created, err := im.upsert(ctx, id.KindTechnician, legacyID, nil, func() (string, error) {
			row := &domain.Technician{
				OrganizationID: im.org,
				LegacyID:       &legacyID,
				Name:           orDefault(t.Name, "Technician"),
				Phone:          t.Phone.String(),
				Notes:          strings.TrimSpace(t.Notes),
				Active:         boolOr(t.Active, true),
				CreatedAt:      im.parseTimeOr(t.CreatedAt, time.Time{}),
			}
			err := im.store.Technicians.Create(ctx, row)
			return row.ID, err
		})
		if err != nil {
			return err
		}
		if created {
			im.sum.Created.Technicians++
		} else {
			im.sum.Skipped.Technicians++
		}
		im.ids.Set(id.KindTechnician, legacyID, serverID)
	}
	return nil
}

func (im *importer) importBlockedSlots(ctx context.Context, doc *legacy.Document) error {
	if im.caller.scoped() {
		im.sum.Skipped.BlockedSlotsOutOfScope += len(doc.Availability.Blocked)
		return nil
	}
	for _, b := range doc.Availability.Blocked {
		b.ID = strings.TrimSpace(b.ID)
		if legacy.Validate(b) != nil {
			im.sum.Skipped.BlockedSlotsInvalid++
			continue
		}
		legacyID := b.ID
		serverID, created, err := im.upsert(ctx, id.KindBlockedSlot, legacyID, nil, func() (string, error) {
			row := &domain.BlockedSlot{
				OrganizationID: im.org,
				LegacyID:       &legacyID,
				Date:           strings.TrimSpace(b.Date),
				Start:          strings.TrimSpace(b.Start),
				End:            strings.TrimSpace(b.End),
				Note:           strings.TrimSpace(b.Note),
				CreatedAt:      im.parseTimeOr(b.CreatedAt, time.Time{}),
			}
			err := im.store.BlockedSlots.Create(ctx, row)
			return row.ID, err
		})
		if err != nil {
			return err
		}
		if created {
			im.sum.Created.BlockedSlots++
		} else {
			im.sum.Skipped.BlockedSlots++
		}
		im.ids.Set(id.KindBlockedSlot, legacyID, serverID)
	}
	return nil
}

func (im *importer) importSessions(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Sessions) {
		sess := doc.Sessions[key]
		legacyID := strings.TrimSpace(key)
		hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(sess.HotelID))
		if !ok {
			im.sum.Skipped.SessionsMissingHotel++
			continue
		}
		if legacyID == "" {
			im.sum.Skipped.SessionsInvalid++
			continue
		}

		serverID, created, err := im.upsert(ctx, id.KindSession, legacyID, nil, func() (string, error) {
			row := &domain.Session{
				OrganizationID: im.org,
				HotelID:        hotelID,
				LegacyID:       &legacyID,
				Status:         domain.UpperOr(sess.Status, "PLANNED"),
				RoomIDs:        im.ids.ResolveList(id.KindRoom, derefList(sess.RoomIDs)),
				Date:           strings.TrimSpace(sess.Date),
				Start:          strings.TrimSpace(sess.Start),
				End:            strings.TrimSpace(sess.End),
				TechnicianID:   im.ids.Ref(id.KindTechnician, trimmed(sess.TechnicianID)),
				CreatedAt:      im.parseTimeOr(sess.CreatedAt, time.Time{}),
			}
			err := im.store.Sessions.Create(ctx, row)
			return row.ID, err
		})
		if err != nil {
			return err
		}
		if created {
			im.sum.Created.Sessions++
		} else {
			im.sum.Skipped.Sessions++
		}
		im.ids.Set(id.KindSession, legacyID, serverID)
	}
	return nil
}

// documentTasks returns the tasks of the document, including legacy
// incidents that have no task under the same key.
func documentTasks(doc *legacy.Document) map[string]legacy.Task {
	out := make(map[string]legacy.Task, len(doc.Tasks)+len(doc.Incidents))
	for k, v := range doc.Incidents {
		out[k] = v
	}
	for k, v := range doc.Tasks {
		out[k] = v
	}
	return out
}

func (im *importer) importTasks(ctx context.Context, doc *legacy.Document) error {
	tasks := documentTasks(doc)
	for _, key := range sortedKeys(tasks) {
		t := tasks[key]
		legacyID := strings.TrimSpace(key)
		hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(t.HotelID))
		if !ok {
			im.sum.Skipped.TasksMissingHotel++
			continue
		}
		if legacyID == "" {
			im.sum.Skipped.TasksInvalid++
			continue
		}

		serverID, created, err := im.upsert(ctx, id.KindTask, legacyID, nil, func() (string, error) {
			row := im.buildTask(hotelID, legacyID, t)
			err := im.store.Tasks.Create(ctx, row)
			return row.ID, err
		})
		if err != nil {
			return err
		}
		if created {
			im.sum.Created.Tasks++
		} else {
			im.sum.Skipped.Tasks++
		}
		im.ids.Set(id.KindTask, legacyID, serverID)
	}
	return nil
}

func (im *importer) buildTask(hotelID, legacyID string, t legacy.Task) *domain.Task {
	now := im.now()
	createdAt := im.parseTimeOr(t.CreatedAt, now)
	row := &domain.Task{
		OrganizationID:  im.org,
		HotelID:         hotelID,
		LegacyID:        &legacyID,
		Category:        domain.NormalizeTaskCategory(t.Category),
		Status:          domain.NormalizeTaskStatus(t.Status),
		Priority:        domain.NormalizeTaskPriority(t.Priority),
		Type:            orDefault(t.Type, "OTHER"),
		Description:     strings.TrimSpace(t.Description),
		AssignedStaffID: im.ids.Ref(id.KindStaff, trimmed(t.AssignedStaffID)),
		Schedule:        nullRaw(t.Schedule),
		CreatedAt:       createdAt,
		UpdatedAt:       im.parseTimeOr(t.UpdatedAt, createdAt),
	}

	locations := t.Locations
	if locations == nil && t.Location != nil {
		locations = []legacy.Location{*t.Location}
	}
	for _, l := range locations {
		row.Locations = append(row.Locations, domain.TaskLocation{
			Label:   strings.TrimSpace(l.Label),
			RoomID:  im.ids.Ref(id.KindRoom, trimmed(l.RoomID)),
			SpaceID: im.ids.Ref(id.KindSpace, trimmed(l.SpaceID)),
		})
	}

	for _, ev := range t.Events {
		row.Events = append(row.Events, domain.TaskEvent{
			At:           im.parseTimeOr(ev.At, now),
			Action:       orDefault(ev.Action, "NOTE"),
			ActorRole:    orDefault(ev.ActorRole, "hotel_manager"),
			ActorStaffID: im.ids.Ref(id.KindStaff, trimmed(ev.ActorStaffID)),
			Note:         strings.TrimSpace(ev.Note),
			Patch:        nullRaw(ev.Patch),
		})
	}

	// Only inline attachments travel in the document; files served by URL
	// stay with the server that stores them.
	for _, a := range t.Attachments {
		if trimmed(a.DataURL) == "" {
			continue
		}
		dataURL := *a.DataURL
		row.Attachments = append(row.Attachments, domain.TaskAttachment{
			At:           im.parseTimeOr(a.At, now),
			Name:         orDefault(a.Name, "photo"),
			Mime:         orDefault(a.Mime, "image/*"),
			DataURL:      &dataURL,
			ActorRole:    orDefault(a.ActorRole, "hotel_staff"),
			ActorStaffID: im.ids.Ref(id.KindStaff, trimmed(a.ActorStaffID)),
		})
	}
	return row
}

func optionalTime(v *string) *time.Time {
	t, ok := domain.ParseTime(trimmed(v))
	if !ok {
		return nil
	}
	return &t
}

func (im *importer) importReservations(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Reservations) {
		r := doc.Reservations[key]
		r.Token = strings.TrimSpace(r.Token)
		if legacy.Validate(r) != nil {
			im.sum.Skipped.ReservationsInvalid++
			continue
		}
		hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(r.HotelID))
		if !ok {
			im.sum.Skipped.ReservationsMissingHotel++
			continue
		}

		row := &domain.Reservation{
			OrganizationID:        im.org,
			HotelID:               hotelID,
			Token:                 r.Token,
			StatusAdmin:           domain.NormalizeReservationStatus(r.StatusAdmin, domain.ReservationStatusProposed),
			StatusHotel:           domain.NormalizeReservationStatus(r.StatusHotel, domain.ReservationStatusPending),
			RoomIDs:               im.ids.ResolveList(id.KindRoom, derefList(r.RoomIDs)),
			SpaceIDs:              im.ids.ResolveList(id.KindSpace, derefList(r.SpaceIDs)),
			RoomNotes:             id.RemapKeys(im.ids, id.KindRoom, r.RoomNotes),
			SpaceNotes:            id.RemapKeys(im.ids, id.KindSpace, r.SpaceNotes),
			SurfaceDefault:        domain.NormalizeSurface(r.SurfaceDefault),
			RoomSurfaceOverrides:  id.RemapKeys(im.ids, id.KindRoom, r.RoomSurfaceOverrides),
			NotesGlobal:           strings.TrimSpace(r.NotesGlobal),
			NotesOrg:              strings.TrimSpace(r.NotesOrg),
			DurationMinutes:       r.DurationMinutes.IntOr(0),
			ProposedDate:          strings.TrimSpace(r.ProposedDate),
			ProposedStart:         strings.TrimSpace(r.ProposedStart),
			RequiresAdminApproval: r.RequiresAdminApproval,
			ConfirmedAt:           optionalTime(r.ConfirmedAt),
			CancelledAt:           optionalTime(r.CancelledAt),
			CancelledBy:           strings.TrimSpace(r.CancelledBy),
			CancelReason:          strings.TrimSpace(r.CancelReason),
			CreatedAt:             im.parseTimeOr(r.CreatedAt, time.Time{}),
		}

		owner, err := im.store.Reservations.FindByToken(ctx, r.Token)
		if errors.Is(err, store.ErrNotFound) {
			err = im.store.Reservations.Create(ctx, row)
			if err == nil {
				im.sum.Created.Reservations++
				im.ids.Set(id.KindReservation, key, row.ID)
				continue
			}
			if !db.IsUniqueViolation(err) {
				return err
			}
			owner, err = im.store.Reservations.FindByToken(ctx, r.Token)
		}
		if err != nil {
			return err
		}

		if err := im.updateReservation(ctx, owner, row); err != nil {
			return err
		}
		im.ids.Set(id.KindReservation, key, owner.ID)
	}
	return nil
}

// updateReservation rewrites an existing reservation matched by token.
// Tokens held by another organization are never touched.
func (im *importer) updateReservation(ctx context.Context, owner *store.TokenOwner, row *domain.Reservation) error {
	if owner.OrganizationID != im.org {
		im.sum.Skipped.ReservationsTokenConflict++
		return nil
	}
	row.ID = owner.ID
	err := im.updateExisting(ctx, id.KindReservation, owner.ID, func(string) error {
		return im.store.Reservations.Update(ctx, row)
	})
	if errors.Is(err, errOutOfScope) {
		im.sum.Skipped.ReservationsOutOfScope++
		return nil
	}
	if err != nil {
		return err
	}
	im.sum.Skipped.Reservations++
	return nil
}

func (im *importer) importContracts(ctx context.Context, doc *legacy.Document) error {
	for _, key := range sortedKeys(doc.Contracts) {
		c := doc.Contracts[key]
		legacyID := strings.TrimSpace(key)
		c.Token = strings.TrimSpace(c.Token)
		if legacyID == "" || legacy.Validate(c) != nil {
			im.sum.Skipped.ContractsInvalid++
			continue
		}

		if done, err := im.adoptContract(ctx, legacyID, c.Token); err != nil || done {
			if err != nil {
				return err
			}
			continue
		}

		hotelID, ok := im.ids.Lookup(id.KindHotel, trimmed(c.HotelID))
		if !ok {
			im.sum.Skipped.ContractsMissingHotel++
			continue
		}

		createdAt := im.parseTimeOr(c.CreatedAt, im.now())
		row := &domain.Contract{
			OrganizationID:      im.org,
			HotelID:             hotelID,
			LegacyID:            &legacyID,
			Token:               c.Token,
			Status:              domain.UpperOr(c.Status, "SENT"),
			HotelName:           strings.TrimSpace(c.HotelName),
			Contact:             nullRaw(c.Contact),
			Pricing:             nullRaw(c.Pricing),
			RoomsMinPerSession:  c.RoomsMinPerSession.IntOr(0),
			RoomsMaxPerSession:  c.RoomsMaxPerSession.IntOr(0),
			RoomsPerSession:     c.RoomsPerSession.IntOr(0),
			Frequency:           domain.UpperOr(c.Frequency, "YEARLY"),
			SurfaceType:         domain.NormalizeSurface(c.SurfaceType),
			AppliedTier:         strings.TrimSpace(c.AppliedTier),
			AppliedPricePerRoom: c.AppliedPricePerRoom.FloatOr(0),
			OtherSurfaces:       nullRaw(c.OtherSurfaces),
			TotalPerSession:     c.TotalPerSession.FloatOr(0),
			Notes:               strings.TrimSpace(c.Notes),
			SentAt:              im.parseTimeOr(c.SentAt, createdAt),
			SignedBy:            strings.TrimSpace(c.SignedBy),
			AcceptedAt:          optionalTime(c.AcceptedAt),
			CreatedAt:           createdAt,
		}
		err := im.store.Contracts.Create(ctx, row)
		if err == nil {
			im.sum.Created.Contracts++
			im.ids.Set(id.KindContract, legacyID, row.ID)
			continue
		}
		if !db.IsUniqueViolation(err) {
			return err
		}
		done, adoptErr := im.adoptContract(ctx, legacyID, c.Token)
		if adoptErr != nil {
			return adoptErr
		}
		if !done {
			return err
		}
	}
	return nil
}

// adoptContract resolves an existing contract by token, then by legacy id.
// It reports whether the entry was settled (adopted or in conflict).
func (im *importer) adoptContract(ctx context.Context, legacyID, token string) (bool, error) {
	owner, err := im.store.Contracts.FindByToken(ctx, token)
	switch {
	case err == nil && owner.OrganizationID != im.org:
		im.sum.Skipped.ContractsTokenConflict++
		return true, nil
	case err == nil:
		im.sum.Skipped.Contracts++
		im.ids.Set(id.KindContract, legacyID, owner.ID)
		return true, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	serverID, err := im.store.FindByLegacy(ctx, id.KindContract, im.org, legacyID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	im.sum.Skipped.Contracts++
	im.ids.Set(id.KindContract, legacyID, serverID)
	return true, nil
}

func (im *importer) importPricing(ctx context.Context, doc *legacy.Document) error {
	p := doc.Pricing.Defaults
	if p == nil {
		return nil
	}
	if im.caller.scoped() {
		im.sum.Skipped.PricingDefaultsOutOfScope++
		return nil
	}
	created, err := im.store.Pricing.Upsert(ctx, &domain.PricingDefaults{
		OrganizationID:     im.org,
		RoomsMinPerSession: p.RoomsMinPerSession.IntOr(legacy.DefaultRoomsMin),
		RoomsMaxPerSession: p.RoomsMaxPerSession.IntOr(legacy.DefaultRoomsMax),
		BasePrices:         nullRaw(p.BasePrices),
		PenaltyPrices:      nullRaw(p.PenaltyPrices),
		ContractPrices:     nullRaw(p.ContractPrices),
		AdvantagePrices:    nullRaw(p.AdvantagePrices),
		SqftPrices:         nullRaw(p.SqftPrices),
	})
	if err != nil {
		return err
	}
	if created {
		im.sum.Created.PricingDefaults++
	} else {
		im.sum.Skipped.PricingDefaults++
	}
	return nil
}

func (im *importer) importSettings(ctx context.Context, doc *legacy.Document) error {
	if doc.Settings == (legacy.Settings{}) {
		return nil
	}
	if im.caller.scoped() {
		im.sum.Skipped.SettingsOutOfScope++
		return nil
	}
	existing, err := im.store.Orgs.Settings(ctx, im.org)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc.Settings)
	if err != nil {
		return err
	}
	if err := im.store.Orgs.SetSettings(ctx, im.org, data); err != nil {
		return err
	}
	if len(existing) == 0 {
		im.sum.Created.Settings++
	} else {
		im.sum.Skipped.Settings++
	}
	return nil
}
