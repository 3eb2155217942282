// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns. Mappers convert between the two.
//
// Timestamps are stored as unix seconds so that postgres and sqlite compare
// them identically.
package models
