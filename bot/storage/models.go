package storage

import "database/sql"

// User is a registered bot user. The primary key is the Telegram id.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
}

// Booking is one room booking. A draft row is created when the booking
// flow starts and the date is filled in at selection; NPax and Purpose
// are carried in the schema for later flow steps.
type Booking struct {
	Ref     string       `db:"ref"`
	UserID  int64        `db:"user_id"`
	Date    sql.NullTime `db:"booking_date"`
	NPax    int          `db:"n_pax"`
	Purpose string       `db:"purpose"`
}
