package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the tables the booking pipeline depends on. Concert and
// ticket type rows are managed by the admin tooling; bookings are written
// only by the admission daemon. bookings.id is the idempotency id carried by
// the queue message, so a redelivered message collides on the primary key
// instead of creating a second booking.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS concerts (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title       VARCHAR(200)    NOT NULL,
		description TEXT            NULL,
		date        DATETIME        NOT NULL,
		image_url   VARCHAR(500)    NULL,
		created_at  DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		concert_id     BIGINT UNSIGNED NOT NULL,
		type           VARCHAR(50)     NOT NULL,
		price          DECIMAL(10,2)   NOT NULL,
		total_quantity INT UNSIGNED    NOT NULL,
		CONSTRAINT fk_ticket_types_concert FOREIGN KEY (concert_id) REFERENCES concerts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             CHAR(36)        NOT NULL PRIMARY KEY,
		user_id        VARCHAR(64)     NOT NULL,
		concert_id     BIGINT UNSIGNED NOT NULL,
		ticket_type_id BIGINT UNSIGNED NOT NULL,
		quantity       INT UNSIGNED    NOT NULL,
		status         ENUM('pending','confirmed','rejected') NOT NULL DEFAULT 'pending',
		created_at     DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_bookings_ticket_status (ticket_type_id, status),
		KEY idx_bookings_user (user_id, created_at),
		CONSTRAINT fk_bookings_concert FOREIGN KEY (concert_id) REFERENCES concerts(id) ON DELETE CASCADE,
		CONSTRAINT fk_bookings_ticket_type FOREIGN KEY (ticket_type_id) REFERENCES ticket_types(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
