package upstream

import "context"

// MemberRow is one raw member record from the paginated member list. Field
// shapes follow the upstream payload, inconsistencies included: PersonID
// is the stable identifier, ID is the upstream database row id, and
// NameCode is only present for sitting members.
type MemberRow struct {
	ID         int    `json:"id"`
	PersonID   string `json:"author_id"`
	FullName   string `json:"full_name"`
	NameCode   string `json:"name_code,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
}

// MemberListPage is one page of the member list.
type MemberListPage struct {
	Count int         `json:"count"`
	Rows  []MemberRow `json:"rows"`
}

// Pages reports the total page count for the given page size.
func (p *MemberListPage) Pages(limit int) int {
	if limit <= 0 {
		return 0
	}
	return (p.Count + limit - 1) / limit
}

// DirectoryRow is one raw record from the member directory. Membership
// carries upstream congress ids, not canonical numbers.
type DirectoryRow struct {
	ID         int    `json:"id"`
	PersonID   string `json:"author_id"`
	FullName   string `json:"full_name"`
	Nickname   string `json:"nickname,omitempty"`
	Membership []int  `json:"membership"`
}

// CommitteeRow is one raw committee record. Code may be empty; such
// records cannot be keyed and are skipped by the indexer.
type CommitteeRow struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Location     string `json:"location,omitempty"`
	TypeDesc     string `json:"type_desc,omitempty"`
}

// CommitteeListPage is one page of the committee list.
type CommitteeListPage struct {
	Count int            `json:"count"`
	Rows  []CommitteeRow `json:"rows"`
}

// Pages reports the total page count for the given page size.
func (p *CommitteeListPage) Pages(limit int) int {
	if limit <= 0 {
		return 0
	}
	return (p.Count + limit - 1) / limit
}

// BillRow is one raw bill record from search or point lookup. Congress is
// the upstream API id and is only populated on endpoints that span
// congresses.
type BillRow struct {
	Congress     int    `json:"congress,omitempty"`
	DocKey       string `json:"bill_no"`
	Title        string `json:"title"`
	ShortTitle   string `json:"short_title,omitempty"`
	DateFiled    string `json:"date_filed,omitempty"`
	Status       string `json:"status,omitempty"`
	Significance string `json:"significance,omitempty"`
	DownloadURL  string `json:"text_as_filed,omitempty"`
}

// BillPage is one page of bill search results.
type BillPage struct {
	Count int       `json:"count"`
	Rows  []BillRow `json:"rows"`
}

// BillQuery filters a bill search. Congress must be the upstream API id
// (callers convert canonical numbers with congress.ToUpstream). Exactly
// one of AuthorID or CommitteeID is normally set.
type BillQuery struct {
	Page        int
	Limit       int
	Congress    int
	AuthorID    string
	AuthorType  string // "authors" or "coAuthors"
	CommitteeID string
	Filter      string
}

// Source is the upstream data source consumed by the indexing engine and
// the read resolver's live fallback.
type Source interface {
	FetchMemberList(ctx context.Context, page, limit int, filter string) (*MemberListPage, error)
	FetchMemberDirectory(ctx context.Context) ([]DirectoryRow, error)
	FetchCommitteeList(ctx context.Context, page, limit int) (*CommitteeListPage, error)
	FetchBillSearch(ctx context.Context, q BillQuery) (*BillPage, error)
	FetchBillByKey(ctx context.Context, apiCongress int, docKey string) (*BillRow, error)
	FetchCoAuthored(ctx context.Context, personID string) ([]BillRow, error)
}
