/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  point package types. Field names follow the public contract:
  {id, point} for balances and {id, userId, amount, type, updateMillis}
  for history entries.

REQUEST BODIES:
  charge/use take a raw JSON integer (e.g. `1000`), not an object, so there
  is no request DTO.
*/
package api

import (
	"time"

	"github.com/warp/point-engine/point"
)

// UserPointDTO is a user's current balance.
type UserPointDTO struct {
	ID    int64 `json:"id"`
	Point int64 `json:"point"`
}

// PointHistoryDTO is one accepted charge/use.
type PointHistoryDTO struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	Amount       int64  `json:"amount"`
	Type         string `json:"type"`
	UpdateMillis int64  `json:"updateMillis"`
}

// FailedEventDTO is one rejected charge/use.
type FailedEventDTO struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	Operation    string `json:"operation"`
	Amount       int64  `json:"amount"`
	ErrorMessage string `json:"errorMessage"`
	UpdateMillis int64  `json:"updateMillis"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toUserPointDTO(a point.Account) UserPointDTO {
	return UserPointDTO{ID: int64(a.UserID), Point: a.Balance}
}

func toHistoryDTOs(entries []point.HistoryEntry) []PointHistoryDTO {
	dtos := make([]PointHistoryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PointHistoryDTO{
			ID:           e.ID,
			UserID:       int64(e.UserID),
			Amount:       e.Amount,
			Type:         string(e.Type),
			UpdateMillis: millis(e.Timestamp),
		}
	}
	return dtos
}

func toFailedEventDTOs(events []point.FailedEvent) []FailedEventDTO {
	dtos := make([]FailedEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = FailedEventDTO{
			ID:           ev.ID,
			UserID:       int64(ev.UserID),
			Operation:    string(ev.Operation),
			Amount:       ev.Amount,
			ErrorMessage: ev.ErrorMessage,
			UpdateMillis: millis(ev.Timestamp),
		}
	}
	return dtos
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
