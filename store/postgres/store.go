// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/pkg/errors"
	"github.com/smsgwd/smsgwd/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	internalpg "github.com/smsgwd/smsgwd/internal/postgres"
)

var (
	errInsertPdu     = errors.New("failed to insert pdu row")
	errInsertSms     = errors.New("failed to insert sms row")
	errInsertCall    = errors.New("failed to insert call row")
	errSelectPdu     = errors.New("failed to select pdu rows")
	errArchiveTx     = errors.New("archive transaction failed")
	errTransRollback = errors.New("failed to roll back transaction")
)

var _ store.Store = (*pgStore)(nil)

type pgStore struct {
	db internalpg.Database
}

// New instantiates a PostgreSQL-backed Store.
func New(db internalpg.Database) store.Store {
	return &pgStore{db: db}
}

// isDuplicate reports whether err is a unique_violation, the condition the
// Store port's insert operations must collapse to a zero id instead of
// surfacing.
func isDuplicate(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	return ok && pgErr.Code == pgerrcode.UniqueViolation
}

type dbPdu struct {
	ID        int64  `db:"id"`
	Device    int    `db:"device"`
	Timestamp int64  `db:"timestamp"`
	Uploaded  int64  `db:"uploaded"`
	Direction int    `db:"direction"`
	Bytes     []byte `db:"bytes"`
}

func (s *pgStore) InsertPdu(ctx context.Context, device int, timestampNs, uploadedNs int64, direction codec.Direction, bytes []byte) (int64, error) {
	q := `INSERT INTO pdu (device, timestamp, uploaded, direction, bytes)
          VALUES (:device, :timestamp, :uploaded, :direction, :bytes) RETURNING id`

	row := dbPdu{Device: device, Timestamp: timestampNs, Uploaded: uploadedNs, Direction: int(direction), Bytes: bytes}

	rows, err := s.db.NamedQueryContext(ctx, q, row)
	if err != nil {
		if isDuplicate(err) {
			return 0, nil
		}
		return 0, internalpg.HandleError(errInsertPdu, err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, errors.Wrap(errInsertPdu, err)
		}
	}
	return id, nil
}

type dbSms struct {
	ID        int64  `db:"id"`
	Device    int    `db:"device"`
	Direction int    `db:"direction"`
	Sent      int64  `db:"sent"`
	Received  int64  `db:"received"`
	Peer      string `db:"peer"`
	Subject   string `db:"subject"`
	Body      string `db:"body"`
}

func (s *pgStore) InsertSms(ctx context.Context, sms store.Sms) (int64, error) {
	q := `INSERT INTO sms (device, direction, sent, received, peer, subject, body)
          VALUES (:device, :direction, :sent, :received, :peer, :subject, :body) RETURNING id`

	row := dbSms{
		Device:    sms.Device,
		Direction: int(sms.Direction),
		Sent:      sms.Sent,
		Received:  sms.Received,
		Peer:      sms.Peer,
		Subject:   sms.Subject,
		Body:      sms.Body,
	}

	rows, err := s.db.NamedQueryContext(ctx, q, row)
	if err != nil {
		if isDuplicate(err) {
			return 0, nil
		}
		return 0, internalpg.HandleError(errInsertSms, err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, errors.Wrap(errInsertSms, err)
		}
	}
	return id, nil
}

type dbCall struct {
	ID        int64  `db:"id"`
	Device    int    `db:"device"`
	Timestamp int64  `db:"timestamp"`
	Uploaded  int64  `db:"uploaded"`
	Peer      string `db:"peer"`
	Duration  int64  `db:"duration"`
	Type      string `db:"type"`
	Raw       string `db:"raw"`
}

func (s *pgStore) InsertCall(ctx context.Context, device int, timestampNs, uploadedNs int64, peer string, durationNs int64, callType, raw string) (int64, error) {
	q := `INSERT INTO call (device, timestamp, uploaded, peer, duration, type, raw)
          VALUES (:device, :timestamp, :uploaded, :peer, :duration, :type, :raw) RETURNING id`

	row := dbCall{Device: device, Timestamp: timestampNs, Uploaded: uploadedNs, Peer: peer, Duration: durationNs, Type: callType, Raw: raw}

	rows, err := s.db.NamedQueryContext(ctx, q, row)
	if err != nil {
		if isDuplicate(err) {
			return 0, nil
		}
		return 0, internalpg.HandleError(errInsertCall, err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, errors.Wrap(errInsertCall, err)
		}
	}
	return id, nil
}

func (s *pgStore) SelectAllPdu(ctx context.Context) ([]store.PduRow, error) {
	q := `SELECT id, device, timestamp, uploaded, direction, bytes FROM pdu`

	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(errSelectPdu, err)
	}
	defer rows.Close()

	var out []store.PduRow
	for rows.Next() {
		var r dbPdu
		if err := rows.StructScan(&r); err != nil {
			return nil, errors.Wrap(errSelectPdu, err)
		}
		out = append(out, store.PduRow{
			ID:        r.ID,
			Device:    r.Device,
			Timestamp: r.Timestamp,
			Uploaded:  r.Uploaded,
			Direction: codec.Direction(r.Direction),
			Bytes:     r.Bytes,
		})
	}
	return out, nil
}

// ArchiveTransaction performs the five-step atomic move described in §4.4:
// insert the assembled sms row, then for every contributing and duplicate
// pdu id, copy its row into archive (tagged with the new sms id) and
// delete it from the live table.
func (s *pgStore) ArchiveTransaction(ctx context.Context, atx store.ArchiveTransaction) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(errArchiveTx, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrap(errTransRollback, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = errors.Wrap(errArchiveTx, cErr)
		}
	}()

	insertSms := `INSERT INTO sms (device, direction, sent, received, peer, subject, body)
                  VALUES (:device, :direction, :sent, :received, :peer, :subject, :body) RETURNING id`
	row := dbSms{
		Device:    atx.Sms.Device,
		Direction: int(atx.Sms.Direction),
		Sent:      atx.Sms.Sent,
		Received:  atx.Sms.Received,
		Peer:      atx.Sms.Peer,
		Subject:   atx.Sms.Subject,
		Body:      atx.Sms.Body,
	}
	rows, qerr := tx.NamedQuery(insertSms, row)
	if qerr != nil {
		err = internalpg.HandleError(errArchiveTx, qerr)
		return err
	}
	var smsID int64
	if rows.Next() {
		if serr := rows.Scan(&smsID); serr != nil {
			rows.Close()
			err = errors.Wrap(errArchiveTx, serr)
			return err
		}
	}
	rows.Close()

	moveToArchive := `INSERT INTO archive (sms_id, device, timestamp, uploaded, direction, bytes)
                       SELECT $1, device, timestamp, uploaded, direction, bytes FROM pdu WHERE id = $2`
	deletePdu := `DELETE FROM pdu WHERE id = $1`

	allIDs := make([]int64, 0, len(atx.ContributingPduIDs)+len(atx.DuplicatePduIDs))
	allIDs = append(allIDs, atx.ContributingPduIDs...)
	allIDs = append(allIDs, atx.DuplicatePduIDs...)

	for _, id := range allIDs {
		if _, err = tx.ExecContext(ctx, moveToArchive, smsID, id); err != nil {
			err = errors.Wrap(errArchiveTx, err)
			return err
		}
		if _, err = tx.ExecContext(ctx, deletePdu, id); err != nil {
			err = errors.Wrap(errArchiveTx, err)
			return err
		}
	}

	return nil
}
