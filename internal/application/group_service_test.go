package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/trainingcenter/internal/persistence"
)

func TestGroupServiceCreateValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.groups.CreateGroup(context.Background(), CreateGroupParams{
		Principal: trainer,
		Name:      " ",
		WeeklyPattern: []PatternEntryInput{
			{Weekday: "funday", StartTime: "09:00", EndTime: "10:00"},
			{Weekday: "monday", StartTime: "10:00", EndTime: "09:00"},
			{Weekday: "tuesday", StartTime: "25:00", EndTime: "26:00"},
		},
		StartDate: "2024-06-30",
		EndDate:   "2024-03-01",
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{
		"courseId",
		"name",
		"weeklyPattern[0].weekday",
		"weeklyPattern[1].endTime",
		"weeklyPattern[2].startTime",
		"endDate",
	} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestGroupServiceCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)

	if group.Status != persistence.GroupActive || group.SessionsCreatedCount != 0 || len(group.WeeklyPattern) != 2 {
		t.Fatalf("unexpected group %+v", group)
	}
	if group.TrainerID != trainer.TrainerID {
		t.Fatalf("expected group owned by %s, got %s", trainer.TrainerID, group.TrainerID)
	}

	if _, err := env.groups.GetGroup(ctx, other, group.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another trainer, got %v", err)
	}
	if _, err := env.groups.GetGroup(ctx, admin, group.ID); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}

	if _, err := env.groups.CreateGroup(ctx, CreateGroupParams{
		Principal: trainer,
		TrainerID: other.TrainerID,
		CourseID:  "course-1",
		Name:      "Borrowed",
		StartDate: "2024-03-01",
		EndDate:   "2024-04-01",
	}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected only admins to assign other trainers, got %v", err)
	}

	assigned, err := env.groups.CreateGroup(ctx, CreateGroupParams{
		Principal: admin,
		TrainerID: other.TrainerID,
		CourseID:  "course-1",
		Name:      "Assigned",
		StartDate: "2024-03-01",
		EndDate:   "2024-04-01",
	})
	if err != nil || assigned.TrainerID != other.TrainerID {
		t.Fatalf("expected admin assignment, got %+v, %v", assigned, err)
	}
}

func TestGroupServiceUpcomingSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	env.createSession(t, trainer, group.ID)

	slots, err := env.groups.UpcomingSlots(ctx, trainer, group.ID, 2)
	if err != nil {
		t.Fatalf("UpcomingSlots failed: %v", err)
	}
	if len(slots) != 2 || !slots[0].Date.Equal(date(11)) || !slots[1].Date.Equal(date(13)) {
		t.Fatalf("unexpected slots %+v", slots)
	}
	if slots[0].Ordinal != 2 {
		t.Fatalf("expected preview to continue at ordinal 2, got %d", slots[0].Ordinal)
	}

	empty := env.createGroup(t, trainer, "course-2", nil)
	if _, err := env.groups.UpcomingSlots(ctx, trainer, empty.ID, 2); !errors.Is(err, ErrNoPattern) {
		t.Fatalf("expected ErrNoPattern, got %v", err)
	}
}

func TestGroupServiceEnrollments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	env.enroll(t, trainer, group.ID, "s1", "s2")

	if _, err := env.groups.EnrollStudent(ctx, EnrollStudentParams{Principal: trainer, GroupID: group.ID, StudentID: "s1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	roster, err := env.groups.ListEnrollments(ctx, trainer, group.ID)
	if err != nil {
		t.Fatalf("ListEnrollments failed: %v", err)
	}
	if len(roster) != 2 || roster[0].CourseID != "course-1" || roster[0].Status != persistence.EnrollmentActive {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func TestGroupServiceUpdateStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)

	var vErr *ValidationError
	if _, err := env.groups.UpdateGroupStatus(ctx, UpdateGroupStatusParams{Principal: trainer, GroupID: group.ID, Status: "deleted"}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, err := env.groups.UpdateGroupStatus(ctx, UpdateGroupStatusParams{Principal: trainer, GroupID: group.ID, Status: "Archived"})
	if err != nil {
		t.Fatalf("UpdateGroupStatus failed: %v", err)
	}
	if updated.Status != persistence.GroupArchived {
		t.Fatalf("expected archived, got %s", updated.Status)
	}
}
