package model

import "time"

// Status is a read-only view of the controller for reporting.
type Status struct {
	State      State
	Unit       string
	DBInfo     DBInfo
	LastRender time.Time
	LastError  string
}
