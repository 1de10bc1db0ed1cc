// Package models provides data model definitions for the FieldSync agent.
package models

// RecordType is the domain category of a queued write. It determines which
// portal route the record is replayed against during a sync pass.
type RecordType string

const (
	RecordVaccination RecordType = "vaccination"
	RecordMaternal    RecordType = "maternal"
	RecordSenior      RecordType = "senior"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case RecordVaccination, RecordMaternal, RecordSenior:
		return true
	}
	return false
}
