package main

import (
	"context"
	"errors"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

type reservationStoreAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationStoreAdapter(repo persistence.ReservationRepository) *reservationStoreAdapter {
	return &reservationStoreAdapter{repo: repo}
}

func (a *reservationStoreAdapter) FindReservations(ctx context.Context, query application.ReservationQuery) ([]application.Reservation, error) {
	views, err := a.repo.FindReservations(ctx, persistence.ReservationFilter{
		Date:      query.Date,
		From:      query.From,
		To:        query.To,
		Rooms:     query.Rooms,
		TimeBlock: query.TimeBlock,
	})
	if err != nil {
		return nil, toApplicationError(err)
	}
	if len(views) == 0 {
		return nil, nil
	}
	reservations := make([]application.Reservation, 0, len(views))
	for _, view := range views {
		reservations = append(reservations, toApplicationReservation(view))
	}
	return reservations, nil
}

func (a *reservationStoreAdapter) FindDate(ctx context.Context, date string) (application.DateEntry, error) {
	row, err := a.repo.FindDate(ctx, date)
	if err != nil {
		return application.DateEntry{}, toApplicationError(err)
	}
	return application.DateEntry{ID: row.ID, Date: row.Date, CreatedAt: row.CreatedAt}, nil
}

func (a *reservationStoreAdapter) InsertDate(ctx context.Context, entry application.DateEntry) error {
	return toApplicationError(a.repo.InsertDate(ctx, persistence.DateRow{
		ID:        entry.ID,
		Date:      entry.Date,
		CreatedAt: entry.CreatedAt,
	}))
}

func (a *reservationStoreAdapter) FindRoom(ctx context.Context, name string) (application.RoomEntry, error) {
	row, err := a.repo.FindRoom(ctx, name)
	if err != nil {
		return application.RoomEntry{}, toApplicationError(err)
	}
	return application.RoomEntry{ID: row.ID, Name: row.RoomName, CreatedAt: row.CreatedAt}, nil
}

func (a *reservationStoreAdapter) InsertRoom(ctx context.Context, entry application.RoomEntry) error {
	return toApplicationError(a.repo.InsertRoom(ctx, persistence.RoomRow{
		ID:        entry.ID,
		RoomName:  entry.Name,
		CreatedAt: entry.CreatedAt,
	}))
}

func (a *reservationStoreAdapter) InsertReservation(ctx context.Context, reservation application.NewReservation) error {
	return toApplicationError(a.repo.InsertSchedule(ctx, persistence.ScheduleRow{
		ID:        reservation.ID,
		DateID:    reservation.DateID,
		RoomID:    reservation.RoomID,
		TimeBlock: reservation.TimeBlock,
		Owner:     ownerPointer(reservation.Owner),
		CreatedAt: reservation.CreatedAt,
	}))
}

func (a *reservationStoreAdapter) DeleteReservation(ctx context.Context, id string) error {
	return toApplicationError(a.repo.DeleteSchedule(ctx, id))
}

type identityStoreAdapter struct {
	repo persistence.IdentityRepository
}

func newIdentityStoreAdapter(repo persistence.IdentityRepository) *identityStoreAdapter {
	return &identityStoreAdapter{repo: repo}
}

func (a *identityStoreAdapter) FindIdentities(ctx context.Context, apartment string) ([]application.IdentityCredentials, error) {
	rows, err := a.repo.FindIdentities(ctx, apartment)
	if err != nil {
		return nil, toApplicationError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	identities := make([]application.IdentityCredentials, 0, len(rows))
	for _, row := range rows {
		identities = append(identities, application.IdentityCredentials{
			Identity: application.Identity{Apartment: row.Apartment, CreatedAt: row.CreatedAt},
			PINHash:  row.PINHash,
		})
	}
	return identities, nil
}

func (a *identityStoreAdapter) CreateIdentity(ctx context.Context, identity application.IdentityCredentials) error {
	return toApplicationError(a.repo.CreateIdentity(ctx, persistence.IdentityRow{
		Apartment: identity.Apartment,
		PINHash:   identity.PINHash,
		CreatedAt: identity.CreatedAt,
	}))
}

func toApplicationReservation(view persistence.ReservationView) application.Reservation {
	reservation := application.Reservation{
		ID:        view.ID,
		Date:      view.Date,
		Room:      view.RoomName,
		TimeBlock: view.TimeBlock,
		CreatedAt: view.CreatedAt,
	}
	if view.Owner != nil {
		reservation.Owner = *view.Owner
	}
	return reservation
}

// toApplicationError keeps the driver error in the chain and adds the
// matching application sentinel.
func toApplicationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return errors.Join(application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return errors.Join(application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return errors.Join(application.ErrMissingReference, err)
	default:
		return err
	}
}

func ownerPointer(owner string) *string {
	if owner == "" {
		return nil
	}
	value := owner
	return &value
}
