package model

import (
	"testing"
	"time"
)

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from RecruitmentStatus
		to   RecruitmentStatus
		want bool
	}{
		{"active_to_completed", StatusActive, StatusCompleted, true},
		{"active_to_cancelled", StatusActive, StatusCancelled, true},
		{"active_to_active", StatusActive, StatusActive, false},
		{"completed_to_cancelled", StatusCompleted, StatusCancelled, false},
		{"cancelled_to_active", StatusCancelled, StatusActive, false},
		{"completed_to_active", StatusCompleted, StatusActive, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.from.CanTransitionTo(test.to); got != test.want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", test.from, test.to, got, test.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusActive.IsTerminal() {
		t.Fatal("ACTIVE should not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Fatal("COMPLETED and CANCELLED should be terminal")
	}
}

func TestRecruitmentIsFull(t *testing.T) {
	r := &Recruitment{Capacity: 2}
	if r.IsFull() {
		t.Fatal("empty recruitment should not be full")
	}

	now := time.Now()
	r.Participants = []Participant{{UserID: 1, JoinedAt: now}}
	if r.IsFull() {
		t.Fatal("one of two slots taken should not be full")
	}

	r.Participants = append(r.Participants, Participant{UserID: 2, JoinedAt: now})
	if !r.IsFull() {
		t.Fatal("capacity reached should be full")
	}
}

func TestRecruitmentIsParticipating(t *testing.T) {
	r := &Recruitment{
		Capacity:     4,
		Participants: []Participant{{UserID: 7, JoinedAt: time.Now()}},
	}

	if !r.IsParticipating(7) {
		t.Fatal("user 7 should be participating")
	}
	if r.IsParticipating(8) {
		t.Fatal("user 8 should not be participating")
	}
}

func TestValidCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		want     bool
	}{
		{1, false},
		{2, true},
		{4, true},
		{8, true},
		{9, false},
		{0, false},
		{-1, false},
	}

	for _, test := range tests {
		if got := ValidCapacity(test.capacity); got != test.want {
			t.Errorf("ValidCapacity(%d) = %v, want %v", test.capacity, got, test.want)
		}
	}
}
