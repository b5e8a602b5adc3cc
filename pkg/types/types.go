package types

import "time"

// Role identifies how an entity relates to a document. Roles are encoded
// into inverted relationship keys, so their values are part of the cache
// key scheme and must stay stable.
type Role string

const (
	RoleAuthors    Role = "authors"
	RoleCoAuthors  Role = "coAuthors"
	RoleCommittees Role = "committees"
)

// MembershipRecord is the primary per-person record written by the
// membership indexing job. Congress numbers are canonical.
type MembershipRecord struct {
	PersonID   string `json:"personId"`
	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	Congresses []int  `json:"congresses"`
}

// InfoRecord is the per-person name-information record written by the
// information indexing job. CoAuthored is attached opportunistically: when
// the upstream co-authorship endpoint fails the field is left nil rather
// than failing the batch.
type InfoRecord struct {
	PersonID   string   `json:"personId"`
	NameCode   string   `json:"nameCode,omitempty"`
	FullName   string   `json:"fullName"`
	FirstName  string   `json:"firstName,omitempty"`
	MiddleName string   `json:"middleName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Nickname   string   `json:"nickname,omitempty"`
	CoAuthored []DocRef `json:"coAuthored,omitempty"`
}

// DocRef is a lightweight reference to a document from a person-centric
// list.
type DocRef struct {
	Congress int    `json:"congress"`
	DocKey   string `json:"docKey"`
	Title    string `json:"title,omitempty"`
}

// DocPartition maps a congress number (decimal string key, JSON objects
// cannot have int keys) to the document references indexed for that
// congress. Per-congress jobs replace exactly one partition and leave the
// others untouched.
type DocPartition map[string][]DocRef

// DocumentInfo is the cached title triple for a single document. It is a
// deliberate subset of the upstream bill record: enough to render a
// document reference on a person page without refetching.
type DocumentInfo struct {
	Congress   int    `json:"congress"`
	DocKey     string `json:"docKey"`
	Title      string `json:"title"`
	ShortTitle string `json:"shortTitle,omitempty"`
	FiledAt    string `json:"filedAt,omitempty"`
}

// Committee is the primary committee record.
type Committee struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Location     string `json:"location,omitempty"`
	TypeDesc     string `json:"typeDesc,omitempty"`
}

// CommitteeRole is one committee membership entry on a person record.
type CommitteeRole struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// PersonSummary is the minimal person shape used when expanding document
// author lists.
type PersonSummary struct {
	PersonID string `json:"personId"`
	FullName string `json:"fullName"`
	Nickname string `json:"nickname,omitempty"`
}

// PersonView is the assembled read-model for one person: primary records
// plus document and committee lists stitched from the cache (or from the
// live fallback when the cache is partially populated).
type PersonView struct {
	PersonID   string          `json:"personId"`
	FullName   string          `json:"fullName"`
	Nickname   string          `json:"nickname,omitempty"`
	NameCode   string          `json:"nameCode,omitempty"`
	Congresses []int           `json:"congresses"`
	Authored   []DocRef        `json:"authored"`
	CoAuthored []DocRef        `json:"coAuthored"`
	Committees []CommitteeRole `json:"committees,omitempty"`
}

// DocumentRow is one row of a per-congress document listing, with author
// cross-references resolved from the cache.
type DocumentRow struct {
	Congress     int             `json:"congress"`
	DocKey       string          `json:"docKey"`
	Title        string          `json:"title"`
	FiledAt      string          `json:"filedAt,omitempty"`
	Status       string          `json:"status,omitempty"`
	Significance string          `json:"significance,omitempty"`
	DownloadURL  string          `json:"downloadUrl,omitempty"`
	Authors      []PersonSummary `json:"authors"`
	CoAuthors    []PersonSummary `json:"coAuthors"`
}

// UnitFailure records a work unit that exhausted its retries during a
// chunked indexing job.
type UnitFailure struct {
	UnitID string `json:"unitId"`
	Error  string `json:"error"`
}

// IndexReport summarizes one indexing invocation. For chunked operations
// NextStart is the cursor for the next call; NextStart == Total means the
// population is exhausted.
type IndexReport struct {
	JobID      string        `json:"jobId"`
	Operation  string        `json:"operation"`
	Total      int           `json:"total"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	NextStart  int           `json:"nextStart"`
	Failures   []UnitFailure `json:"failures,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Failed reports whether any unit in the chunk exhausted its retries.
func (r *IndexReport) Failed() bool {
	return len(r.Failures) > 0
}
