package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// setupTestDB creates a temporary test database with migrations applied.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// setupTestHotel creates an organization with one hotel.
func setupTestHotel(t *testing.T, s *Store) (orgID, hotelID string) {
	t.Helper()
	ctx := context.Background()
	org, err := s.Orgs.Create(ctx, "acme")
	require.NoError(t, err)
	hotel := &domain.Hotel{OrganizationID: org.ID, Name: "Seaside"}
	require.NoError(t, s.Hotels.CreateHotel(ctx, hotel))
	return org.ID, hotel.ID
}

func strPtr(s string) *string { return &s }

func TestHotelStore_CreateAssignsLegacyID(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	got, err := s.FindByLegacy(ctx, id.KindHotel, orgID, hotelID)
	require.NoError(t, err)
	assert.Equal(t, hotelID, got, "a hotel without legacy id uses its own id")

	withLegacy := &domain.Hotel{OrganizationID: orgID, Name: "Harbor", LegacyID: strPtr("h-legacy")}
	require.NoError(t, s.Hotels.CreateHotel(ctx, withLegacy))
	got, err = s.FindByLegacy(ctx, id.KindHotel, orgID, "h-legacy")
	require.NoError(t, err)
	assert.Equal(t, withLegacy.ID, got)

	_, err = s.FindByLegacy(ctx, id.KindHotel, orgID, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &domain.Hotel{OrganizationID: orgID, Name: "Dup", LegacyID: strPtr("h-legacy")}
	err = s.Hotels.CreateHotel(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
}

func TestHotelStore_StructureRoundTrip(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	building := &domain.Building{OrganizationID: orgID, HotelID: hotelID, Name: "Main"}
	require.NoError(t, s.Hotels.CreateBuilding(ctx, building))

	sort := int64(2)
	floor := &domain.Floor{OrganizationID: orgID, BuildingID: building.ID, NameOrNumber: "2", SortOrder: &sort}
	require.NoError(t, s.Hotels.CreateFloor(ctx, floor))

	sqft := 320.5
	cleaned := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	room := &domain.Room{
		OrganizationID: orgID, FloorID: floor.ID, RoomNumber: "201", Active: true,
		Surface: domain.SurfaceCarpet, Sqft: &sqft, LastCleanedAt: &cleaned,
	}
	require.NoError(t, s.Hotels.CreateRoom(ctx, room))

	space := &domain.Space{OrganizationID: orgID, FloorID: floor.ID, Name: "Hall", Type: "CORRIDOR", Active: true}
	require.NoError(t, s.Hotels.CreateSpace(ctx, space))

	floors, err := s.Hotels.ListFloors(ctx, orgID, building.ID)
	require.NoError(t, err)
	require.Len(t, floors, 1)
	assert.Equal(t, int64(2), *floors[0].SortOrder)

	rooms, err := s.Hotels.ListRooms(ctx, orgID, floor.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.SurfaceCarpet, rooms[0].Surface)
	assert.Equal(t, 320.5, *rooms[0].Sqft)
	assert.True(t, rooms[0].LastCleanedAt.Equal(cleaned))
	assert.Nil(t, rooms[0].CleaningFrequencyDays)

	room.RoomNumber = "201A"
	room.Active = false
	require.NoError(t, s.Hotels.UpdateRoom(ctx, room))
	rooms, err = s.Hotels.ListRooms(ctx, orgID, floor.ID)
	require.NoError(t, err)
	assert.Equal(t, "201A", rooms[0].RoomNumber)
	assert.False(t, rooms[0].Active)

	spaces, err := s.Hotels.ListSpaces(ctx, orgID, floor.ID)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "Hall", spaces[0].Name)
}

func TestTaskStore_CreateWithChildren(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	task := &domain.Task{
		OrganizationID: orgID,
		HotelID:        hotelID,
		Category:       domain.TaskCategoryIncident,
		Status:         domain.TaskStatusOpen,
		Priority:       domain.TaskPriorityHigh,
		Type:           "LEAK",
		Description:    "Water under sink",
		Schedule:       json.RawMessage(`{"date":"2024-05-01"}`),
		Locations: []domain.TaskLocation{
			{Label: "Room 101"},
			{Label: "Hall"},
		},
		Events: []domain.TaskEvent{
			{Action: "CREATE", ActorRole: "ADMIN", At: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		},
		Attachments: []domain.TaskAttachment{
			{Name: "photo", Mime: "image/png", DataURL: strPtr("data:image/png;base64,AA==")},
		},
	}
	require.NoError(t, s.Tasks.Create(ctx, task))

	tasks, err := s.Tasks.List(ctx, orgID, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	got := tasks[0]
	assert.Equal(t, domain.TaskCategoryIncident, got.Category)
	assert.JSONEq(t, `{"date":"2024-05-01"}`, string(got.Schedule))
	require.Len(t, got.Locations, 2)
	assert.Equal(t, "Room 101", got.Locations[0].Label)
	assert.Equal(t, 1, got.Locations[1].Position)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "CREATE", got.Events[0].Action)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "data:image/png;base64,AA==", *got.Attachments[0].DataURL)

	scoped, err := s.Tasks.List(ctx, orgID, "other-hotel")
	require.NoError(t, err)
	assert.Empty(t, scoped)
}

func TestTaskStore_CreateRollsBackOnChildFailure(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	task := &domain.Task{
		OrganizationID: orgID,
		HotelID:        hotelID,
		Category:       domain.TaskCategoryTask,
		Status:         domain.TaskStatusOpen,
		Priority:       domain.TaskPriorityNormal,
		Locations:      []domain.TaskLocation{{Label: "x", RoomID: strPtr("missing-room")}},
	}
	require.Error(t, s.Tasks.Create(ctx, task), "foreign key to an unknown room must fail")

	tasks, err := s.Tasks.List(ctx, orgID, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestReservationStore_TokenAndUpdate(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	r := &domain.Reservation{
		OrganizationID: orgID,
		HotelID:        hotelID,
		Token:          "res-1",
		StatusAdmin:    domain.ReservationStatusProposed,
		StatusHotel:    domain.ReservationStatusPending,
		SurfaceDefault: domain.SurfaceBoth,
		RoomNotes:      map[string]json.RawMessage{"r1": json.RawMessage(`"dusty"`)},
	}
	require.NoError(t, s.Reservations.Create(ctx, r))

	owner, err := s.Reservations.FindByToken(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, r.ID, owner.ID)
	assert.Equal(t, orgID, owner.OrganizationID)

	_, err = s.Reservations.FindByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	r.StatusHotel = domain.ReservationStatusApproved
	r.NotesGlobal = "updated"
	require.NoError(t, s.Reservations.Update(ctx, r))

	list, err := s.Reservations.List(ctx, orgID, hotelID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ReservationStatusApproved, list[0].StatusHotel)
	assert.Equal(t, "updated", list[0].NotesGlobal)
	assert.Equal(t, []string{}, list[0].RoomIDs)
	assert.JSONEq(t, `"dusty"`, string(list[0].RoomNotes["r1"]))
}

func TestContractStore_SequentialNumbers(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	for i, token := range []string{"c-1", "c-2", "c-3"} {
		c := &domain.Contract{OrganizationID: orgID, HotelID: hotelID, Token: token, Status: "SENT"}
		require.NoError(t, s.Contracts.Create(ctx, c))
		assert.Equal(t, int64(i+1), c.Number)
	}

	dup := &domain.Contract{OrganizationID: orgID, HotelID: hotelID, Token: "c-1"}
	err := s.Contracts.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err), "token conflicts are not retried")

	list, err := s.Contracts.List(ctx, orgID, "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.JSONEq(t, `{}`, string(list[0].Contact))
}

func TestContractStore_ConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &domain.Contract{OrganizationID: orgID, HotelID: hotelID, Token: id.New()}
			errs[i] = s.Contracts.Create(ctx, c)
		}(i)
	}
	wg.Wait()

	list, err := s.Contracts.List(ctx, orgID, "")
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, c := range list {
		assert.False(t, seen[c.Number], "duplicate number %d", c.Number)
		seen[c.Number] = true
	}
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, list, len(errs))
}

func TestPricingStore_Upsert(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, _ := setupTestHotel(t, s)

	_, err := s.Pricing.Get(ctx, orgID)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := s.Pricing.Upsert(ctx, &domain.PricingDefaults{
		OrganizationID: orgID, RoomsMinPerSession: 5, RoomsMaxPerSession: 9,
		BasePrices: json.RawMessage(`{"BOTH":70}`),
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Pricing.Upsert(ctx, &domain.PricingDefaults{
		OrganizationID: orgID, RoomsMinPerSession: 6, RoomsMaxPerSession: 9,
	})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := s.Pricing.Get(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.RoomsMinPerSession)
	assert.JSONEq(t, `{}`, string(p.BasePrices))
}

func TestBackfillLegacyIDs(t *testing.T) {
	database := setupTestDB(t)
	s := New(database)
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	_, err := database.Exec(`INSERT INTO technicians (id, organization_id, name, created_at) VALUES ('t1', ?, 'Ann', '2024-01-01T00:00:00.000Z')`, orgID)
	require.NoError(t, err)
	// a row whose id is already another row's legacy id keeps a null legacy id
	_, err = database.Exec(`INSERT INTO technicians (id, organization_id, legacy_id, name, created_at) VALUES ('t2', ?, 't3', 'Bob', '2024-01-01T00:00:00.000Z')`, orgID)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO technicians (id, organization_id, name, created_at) VALUES ('t3', ?, 'Cy', '2024-01-01T00:00:00.000Z')`, orgID)
	require.NoError(t, err)
	_, err = database.Exec(`UPDATE hotels SET legacy_id = NULL WHERE id = ?`, hotelID)
	require.NoError(t, err)

	n, err := s.BackfillLegacyIDs(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.FindByLegacy(ctx, id.KindTechnician, orgID, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got)

	got, err = s.FindByLegacy(ctx, id.KindTechnician, orgID, "t3")
	require.NoError(t, err)
	assert.Equal(t, "t2", got)

	got, err = s.FindByLegacy(ctx, id.KindHotel, orgID, hotelID)
	require.NoError(t, err)
	assert.Equal(t, hotelID, got)
}

func TestUserStore_ActiveHotel(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	orgID, hotelID := setupTestHotel(t, s)

	u := &domain.User{OrganizationID: orgID, Email: " Boss@Example.com ", Role: domain.RoleSuperAdmin}
	require.NoError(t, s.Users.Create(ctx, u))

	byEmail, err := s.Users.GetByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	require.NoError(t, s.Users.SetActiveHotel(ctx, u.ID, &hotelID))
	got, err := s.Users.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveHotelID)
	assert.Equal(t, hotelID, *got.ActiveHotelID)
	assert.Nil(t, got.HotelScopeID)

	_, err = s.Users.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
