// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import migrate "github.com/rubenv/sql-migrate"

// Migration returns the schema migration for the gateway's four tables:
// pdu (live, undecoded parts awaiting reassembly), sms (logical assembled
// or legacy-ingested messages), call (voice-call events), and archive
// (parts moved out of pdu once their owning sms row exists).
//
// Every insert-target table carries a uniqueness constraint so the Store
// port's duplicate-collapses-to-zero-id contract has something to collapse
// against; pdu's is the one the specification names explicitly, the other
// two extend the same idempotent-retry guarantee to the ingress's other two
// record kinds.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "smsgwd_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS pdu (
                        id         BIGSERIAL PRIMARY KEY,
                        device     INTEGER NOT NULL,
                        timestamp  BIGINT NOT NULL,
                        uploaded   BIGINT NOT NULL,
                        direction  SMALLINT NOT NULL,
                        bytes      BYTEA NOT NULL,
                        UNIQUE(device, direction, bytes)
                    )`,
					`CREATE TABLE IF NOT EXISTS sms (
                        id        BIGSERIAL PRIMARY KEY,
                        device    INTEGER NOT NULL,
                        direction SMALLINT NOT NULL,
                        sent      BIGINT NOT NULL,
                        received  BIGINT NOT NULL,
                        peer      VARCHAR(64) NOT NULL,
                        subject   VARCHAR(254) NOT NULL DEFAULT '',
                        body      TEXT NOT NULL,
                        UNIQUE(device, direction, sent, peer, body)
                    )`,
					`CREATE TABLE IF NOT EXISTS call (
                        id        BIGSERIAL PRIMARY KEY,
                        device    INTEGER NOT NULL,
                        timestamp BIGINT NOT NULL,
                        uploaded  BIGINT NOT NULL,
                        peer      VARCHAR(64) NOT NULL,
                        duration  BIGINT NOT NULL,
                        type      VARCHAR(32) NOT NULL,
                        raw       TEXT NOT NULL DEFAULT '',
                        UNIQUE(device, timestamp, peer)
                    )`,
					`CREATE TABLE IF NOT EXISTS archive (
                        id        BIGSERIAL PRIMARY KEY,
                        sms_id    BIGINT NOT NULL REFERENCES sms(id),
                        device    INTEGER NOT NULL,
                        timestamp BIGINT NOT NULL,
                        uploaded  BIGINT NOT NULL,
                        direction SMALLINT NOT NULL,
                        bytes     BYTEA NOT NULL
                    )`,
					`CREATE INDEX IF NOT EXISTS archive_sms_id_idx ON archive(sms_id)`,
				},
				Down: []string{
					"DROP TABLE IF EXISTS archive",
					"DROP TABLE IF EXISTS call",
					"DROP TABLE IF EXISTS sms",
					"DROP TABLE IF EXISTS pdu",
				},
			},
		},
	}
}
