package schema

import "time"

// AdminRecord is the document stored in the admin collection. Field names
// match what the application's login route reads.
type AdminRecord struct {
	Name      string    `bson:"name" json:"name"`
	Password  string    `bson:"password" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
