package api

import (
	"time"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
)

// lessonResponse is the wire form of one schedule slot.
type lessonResponse struct {
	StudioCode string    `json:"studio_code"`
	LessonDate string    `json:"lesson_date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	StartsAt   time.Time `json:"starts_at"`
	Name       string    `json:"name"`
	Instructor string    `json:"instructor"`
	Program    string    `json:"program"`
	Status     string    `json:"status"`
	Available  bool      `json:"available"`
}

func toLessonResponses(lessons []model.Lesson) []lessonResponse {
	out := make([]lessonResponse, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, lessonResponse{
			StudioCode: l.StudioCode,
			LessonDate: l.LessonDate,
			StartTime:  l.StartTime,
			EndTime:    l.EndTime,
			StartsAt:   l.StartsAt,
			Name:       l.Name,
			Instructor: l.Instructor,
			Program:    l.Program,
			Status:     l.StatusText,
			Available:  l.Available,
		})
	}
	return out
}

type studioResponse struct {
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	BatchStatus     string     `json:"batch_status"`
	LastProcessedAt *time.Time `json:"last_processed_at"`
}

func toStudioResponses(studios []model.Studio) []studioResponse {
	out := make([]studioResponse, 0, len(studios))
	for _, s := range studios {
		out = append(out, studioResponse{
			Code:            s.Code,
			Name:            s.Name,
			BatchStatus:     string(s.BatchStatus),
			LastProcessedAt: s.LastProcessedAt,
		})
	}
	return out
}

type notificationResponse struct {
	SentAt         time.Time `json:"sent_at"`
	AvailableSlots int       `json:"available_slots"`
	TotalSlots     int       `json:"total_slots"`
}

// waitlistResponse is the wire form of one watched lesson.
type waitlistResponse struct {
	UserID        string                 `json:"user_id"`
	WaitlistID    string                 `json:"waitlist_id"`
	StudioCode    string                 `json:"studio_code"`
	StudioName    string                 `json:"studio_name"`
	LessonDate    string                 `json:"lesson_date"`
	StartTime     string                 `json:"start_time"`
	EndTime       string                 `json:"end_time"`
	LessonName    string                 `json:"lesson_name"`
	Instructor    string                 `json:"instructor"`
	Status        string                 `json:"status"`
	StartsAt      time.Time              `json:"starts_at"`
	CreatedAt     time.Time              `json:"created_at"`
	Notifications []notificationResponse `json:"notifications,omitempty"`
}

func toWaitlistResponse(w *model.Waitlist) waitlistResponse {
	resp := waitlistResponse{
		UserID:     w.UserID,
		WaitlistID: w.WaitlistID,
		StudioCode: w.StudioCode,
		StudioName: w.StudioName,
		LessonDate: w.LessonDate,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
		LessonName: w.LessonName,
		Instructor: w.Instructor,
		Status:     string(w.Status),
		StartsAt:   w.StartsAt,
		CreatedAt:  w.CreatedAt,
	}
	for _, n := range w.Notifications {
		resp.Notifications = append(resp.Notifications, notificationResponse{
			SentAt:         n.SentAt,
			AvailableSlots: n.AvailableSlots,
			TotalSlots:     n.TotalSlots,
		})
	}
	return resp
}

func toWaitlistResponses(entries []model.Waitlist) []waitlistResponse {
	out := make([]waitlistResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toWaitlistResponse(&entries[i]))
	}
	return out
}
