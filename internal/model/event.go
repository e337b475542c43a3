package model

import (
	"fmt"
	"time"
)

type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
	ChangeDeleted ChangeOp = "deleted"
)

const (
	CollectionAppointments = "appointments"
	CollectionPatients     = "patients"
)

// ChangeEvent announces a single-record write to a tenant collection.
type ChangeEvent struct {
	TenantID   string    `json:"tenant_id"`
	Collection string    `json:"collection"`
	Op         ChangeOp  `json:"op"`
	RecordID   string    `json:"record_id"`
	At         time.Time `json:"at"`
}

// ChangeChannel is the pub/sub channel for a tenant collection.
func ChangeChannel(tenantID, collection string) string {
	return fmt.Sprintf("tenant:%s:%s", tenantID, collection)
}
