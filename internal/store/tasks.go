package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// TaskStore handles task persistence together with the task's locations,
// history events and attachments.
type TaskStore struct {
	store *Store
}

// Create inserts a task and all of its children in a single transaction.
// Child ids and positions are assigned here.
func (s *TaskStore) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = id.New()
	}
	now := s.store.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	legacy := legacyOrSelf(t.LegacyID, t.ID)
	t.LegacyID = &legacy

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, organization_id, hotel_id, legacy_id, category, status, priority, type,
			                   description, assigned_staff_id, schedule, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.OrganizationID, t.HotelID, legacy, string(t.Category), string(t.Status), string(t.Priority),
			t.Type, t.Description, nullString(t.AssignedStaffID), rawOrNil(t.Schedule),
			domain.FormatTime(t.CreatedAt), domain.FormatTime(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}

		for i := range t.Locations {
			loc := &t.Locations[i]
			loc.ID = id.New()
			loc.TaskID = t.ID
			loc.Position = i
			_, err := tx.ExecContext(ctx, `
				INSERT INTO task_locations (id, task_id, position, label, room_id, space_id)
				VALUES (?, ?, ?, ?, ?, ?)
			`, loc.ID, loc.TaskID, loc.Position, loc.Label, nullString(loc.RoomID), nullString(loc.SpaceID))
			if err != nil {
				return fmt.Errorf("failed to insert task location: %w", err)
			}
		}

		for i := range t.Events {
			ev := &t.Events[i]
			if ev.ID == "" {
				ev.ID = id.New()
			}
			ev.TaskID = t.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO task_events (id, task_id, at, action, actor_role, actor_staff_id, note, patch)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, ev.ID, ev.TaskID, timeOrNow(ev.At, s.store.now), ev.Action, ev.ActorRole,
				nullString(ev.ActorStaffID), ev.Note, rawOrNil(ev.Patch))
			if err != nil {
				return fmt.Errorf("failed to insert task event: %w", err)
			}
		}

		for i := range t.Attachments {
			att := &t.Attachments[i]
			if att.ID == "" {
				att.ID = id.New()
			}
			att.TaskID = t.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO task_attachments (id, task_id, at, name, mime, data_url, storage_path, actor_role, actor_staff_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, att.ID, att.TaskID, timeOrNow(att.At, s.store.now), att.Name, att.Mime,
				nullString(att.DataURL), nullString(att.StoragePath), att.ActorRole, nullString(att.ActorStaffID))
			if err != nil {
				return fmt.Errorf("failed to insert task attachment: %w", err)
			}
		}

		return nil
	})
}

// List returns the tasks of the organization with their children loaded,
// optionally restricted to a hotel.
func (s *TaskStore) List(ctx context.Context, organizationID, scope string) ([]domain.Task, error) {
	clause, args := scopeClause("hotel_id", scope)
	queryArgs := append([]any{organizationID}, args...)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, legacy_id, category, status, priority, type,
		       description, assigned_staff_id, schedule, created_at, updated_at
		FROM tasks WHERE organization_id = ?`+clause+`
		ORDER BY created_at, id
	`, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var tasks []domain.Task
	index := make(map[string]int)
	for rows.Next() {
		var t domain.Task
		var legacy, assigned, schedule sql.NullString
		var category, status, priority, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.HotelID, &legacy, &category, &status, &priority, &t.Type,
			&t.Description, &assigned, &schedule, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.LegacyID = stringPtr(legacy)
		t.Category = domain.TaskCategory(category)
		t.Status = domain.TaskStatus(status)
		t.Priority = domain.TaskPriority(priority)
		t.AssignedStaffID = stringPtr(assigned)
		t.Schedule = rawPtr(schedule)
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		index[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	rows.Close()

	if len(tasks) == 0 {
		return tasks, nil
	}

	taskFilter := `task_id IN (SELECT id FROM tasks WHERE organization_id = ?` + clause + `)`

	if err := s.loadLocations(ctx, taskFilter, queryArgs, tasks, index); err != nil {
		return nil, err
	}
	if err := s.loadEvents(ctx, taskFilter, queryArgs, tasks, index); err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, taskFilter, queryArgs, tasks, index); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStore) loadLocations(ctx context.Context, filter string, args []any, tasks []domain.Task, index map[string]int) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, task_id, position, label, room_id, space_id
		FROM task_locations WHERE `+filter+`
		ORDER BY task_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to list task locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loc domain.TaskLocation
		var room, space sql.NullString
		if err := rows.Scan(&loc.ID, &loc.TaskID, &loc.Position, &loc.Label, &room, &space); err != nil {
			return fmt.Errorf("failed to scan task location: %w", err)
		}
		loc.RoomID = stringPtr(room)
		loc.SpaceID = stringPtr(space)
		if i, ok := index[loc.TaskID]; ok {
			tasks[i].Locations = append(tasks[i].Locations, loc)
		}
	}
	return rows.Err()
}

func (s *TaskStore) loadEvents(ctx context.Context, filter string, args []any, tasks []domain.Task, index map[string]int) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, task_id, at, action, actor_role, actor_staff_id, note, patch
		FROM task_events WHERE `+filter+`
		ORDER BY task_id, at, id
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to list task events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev domain.TaskEvent
		var at string
		var actor, patch sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TaskID, &at, &ev.Action, &ev.ActorRole, &actor, &ev.Note, &patch); err != nil {
			return fmt.Errorf("failed to scan task event: %w", err)
		}
		ev.At = parseTime(at)
		ev.ActorStaffID = stringPtr(actor)
		ev.Patch = rawPtr(patch)
		if i, ok := index[ev.TaskID]; ok {
			tasks[i].Events = append(tasks[i].Events, ev)
		}
	}
	return rows.Err()
}

func (s *TaskStore) loadAttachments(ctx context.Context, filter string, args []any, tasks []domain.Task, index map[string]int) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, task_id, at, name, mime, data_url, storage_path, actor_role, actor_staff_id
		FROM task_attachments WHERE `+filter+`
		ORDER BY task_id, at, id
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to list task attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var att domain.TaskAttachment
		var at string
		var dataURL, storagePath, actor sql.NullString
		if err := rows.Scan(&att.ID, &att.TaskID, &at, &att.Name, &att.Mime, &dataURL, &storagePath,
			&att.ActorRole, &actor); err != nil {
			return fmt.Errorf("failed to scan task attachment: %w", err)
		}
		att.At = parseTime(at)
		att.DataURL = stringPtr(dataURL)
		att.StoragePath = stringPtr(storagePath)
		att.ActorStaffID = stringPtr(actor)
		if i, ok := index[att.TaskID]; ok {
			tasks[i].Attachments = append(tasks[i].Attachments, att)
		}
	}
	return rows.Err()
}
