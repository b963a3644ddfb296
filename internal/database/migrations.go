package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTenantsTable,
		createSlotsTable,
		createBookingsTable,
		createPaymentRecordsTable,
		createRefundRecordsTable,
		createProcessorEventsTable,
		createActiveBookingsIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTenantsTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS tenants (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    slug VARCHAR(100) UNIQUE NOT NULL,
    name VARCHAR(255) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    commission_bps BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (commission_bps >= 0 AND commission_bps <= 10000)
);`

const createSlotsTable = `
CREATE TABLE IF NOT EXISTS slots (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    package_id VARCHAR(100) NOT NULL,
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    capacity INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(tenant_id, package_id, starts_at),
    CHECK (capacity >= 1),
    CHECK (ends_at > starts_at)
);
CREATE INDEX IF NOT EXISTS idx_slots_tenant ON slots(tenant_id);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    slot_id UUID NOT NULL REFERENCES slots(id),
    customer_name VARCHAR(255) NOT NULL,
    customer_email VARCHAR(255) NOT NULL,
    total_price BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    commission BIGINT,
    payout BIGINT,
    expires_at TIMESTAMPTZ NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (total_price > 0),
    CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'COMPLETED', 'REFUNDED'))
);
CREATE INDEX IF NOT EXISTS idx_bookings_tenant ON bookings(tenant_id);
CREATE INDEX IF NOT EXISTS idx_bookings_expiry ON bookings(expires_at) WHERE status = 'PENDING';`

const createPaymentRecordsTable = `
CREATE TABLE IF NOT EXISTS payment_records (
    booking_id UUID PRIMARY KEY REFERENCES bookings(id),
    processor_ref VARCHAR(100) NOT NULL DEFAULT '',
    captured_amount BIGINT NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (captured_amount >= 0),
    CHECK (status IN ('PENDING', 'CAPTURED', 'FAILED'))
);
CREATE INDEX IF NOT EXISTS idx_payment_records_ref ON payment_records(processor_ref);`

const createRefundRecordsTable = `
CREATE TABLE IF NOT EXISTS refund_records (
    id UUID PRIMARY KEY,
    booking_id UUID NOT NULL REFERENCES bookings(id),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    amount BIGINT NOT NULL,
    reason TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'REQUESTED',
    submission_id VARCHAR(100),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (amount > 0),
    CHECK (status IN ('REQUESTED', 'SUBMITTED', 'COMPLETED', 'FAILED'))
);
CREATE INDEX IF NOT EXISTS idx_refund_records_booking ON refund_records(booking_id);
CREATE INDEX IF NOT EXISTS idx_refund_records_tenant ON refund_records(tenant_id);`

const createProcessorEventsTable = `
CREATE TABLE IF NOT EXISTS processor_events (
    event_id VARCHAR(100) PRIMARY KEY,
    type VARCHAR(50) NOT NULL,
    payload JSONB NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PROCESSED',
    attempts INTEGER NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ,
    anomaly BOOLEAN NOT NULL DEFAULT FALSE,
    last_error TEXT,
    received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ,

    CHECK (status IN ('PROCESSED', 'RETRY', 'REJECTED', 'DEAD'))
);
CREATE INDEX IF NOT EXISTS idx_processor_events_retry ON processor_events(next_attempt_at) WHERE status = 'RETRY';`

// Reservation and expiry both scan active bookings per slot; the partial
// index keeps those checks on the hot path cheap.
const createActiveBookingsIndex = `
CREATE INDEX IF NOT EXISTS idx_bookings_active_slot
    ON bookings(tenant_id, slot_id)
    WHERE status IN ('PENDING', 'CONFIRMED');`
