package model

import "time"

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is the read-only view of a booking consumed by the payment core.
// The booking subsystem owns these rows; this package never mutates them.
type Booking struct {
	ID              string
	UserID          string
	Status          BookingStatus
	DestinationID   string
	DestinationName string
	CheckIn         time.Time
	CheckOut        time.Time
	GroupSize       int
	CarbonKg        float64 // estimated travel footprint, feeds the eco fee
}

func (b *Booking) Cancelled() bool { return b.Status == BookingStatusCancelled }
