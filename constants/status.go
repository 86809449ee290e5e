package constants

// LeadStatus is the canonical status for rows in leads.
type LeadStatus string

// Stable values (store these exact strings in DB).
const (
	LeadStatusNew        LeadStatus = "NEW"         // created from extraction, not yet enriched
	LeadStatusEnriched   LeadStatus = "ENRICHED"    // contact fields attempted
	LeadStatusReady      LeadStatus = "READY"       // compliance-checked, eligible for dispatch
	LeadStatusSending    LeadStatus = "SENDING"     // claimed by a dispatcher run
	LeadStatusSent       LeadStatus = "SENT"        // all requested channels delivered
	LeadStatusSendFailed LeadStatus = "SEND_FAILED" // last send attempt failed; bounded retries
)

// JobStatus is the canonical status for rows in ingest_jobs.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "RUNNING"   // in progress
	JobStatusOCROK     JobStatus = "OCR_OK"    // stage 1 completed (text extracted)
	JobStatusParsed    JobStatus = "PARSED"    // stage 2 completed (fields extracted)
	JobStatusDuplicate JobStatus = "DUPLICATE" // resolved to an existing lead
	JobStatusDone      JobStatus = "DONE"      // lead created
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)

// Terminal reports whether a job reached a resolution that should not be
// repeated for the same document content. Failed jobs are not terminal so
// a fixed environment can reprocess them.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusDuplicate
}

// Channel identifies an outbound contact channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)
