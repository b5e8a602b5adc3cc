package storage

// Cache key-path conventions. The indexing engine writes under these paths
// and the read resolver scans them; keeping the constructors in one place
// is what makes the two sides agree.
//
// Layout:
//
//	person/<personID>/membership       primary membership record
//	person/<personID>/info             primary name-information record
//	person/<personID>/docs/authored    per-congress partitioned doc lists
//	person/<personID>/docs/coauthored  per-congress partitioned doc lists
//	person/<personID>/committees       committee membership list
//	name/full/<fullName>               pointer -> membership record key
//	name/code/<nameCode>               pointer -> info record key
//	committee/<code>                   primary committee record
//	doc/<congress>/<docKey>/info       document title triple
//	rel/<congress>/<docKey>/<role>/<id> presence marker (inverted edge)

func PersonMembershipKey(personID string) Key {
	return K("person", personID, "membership")
}

func PersonInfoKey(personID string) Key {
	return K("person", personID, "info")
}

func PersonAuthoredKey(personID string) Key {
	return K("person", personID, "docs", "authored")
}

func PersonCoAuthoredKey(personID string) Key {
	return K("person", personID, "docs", "coauthored")
}

func PersonCommitteesKey(personID string) Key {
	return K("person", personID, "committees")
}

func FullNameKey(fullName string) Key {
	return K("name", "full", fullName)
}

func NameCodeKey(nameCode string) Key {
	return K("name", "code", nameCode)
}

func CommitteeKey(code string) Key {
	return K("committee", code)
}

// CommitteesPrefix addresses all committee records for scanning.
func CommitteesPrefix() Key {
	return K("committee")
}

// PeoplePrefix addresses all person entries for scanning.
func PeoplePrefix() Key {
	return K("person")
}

func DocInfoKey(congress int, docKey string) Key {
	return K("doc", CongressSeg(congress), docKey, "info")
}

// RelationKey encodes one relationship edge. The value stored under it is
// a bare presence marker; the key carries all the meaning.
func RelationKey(congress int, docKey, role, entityID string) Key {
	return K("rel", CongressSeg(congress), docKey, role, entityID)
}

// RelationRolePrefix addresses every edge of one role on one document.
func RelationRolePrefix(congress int, docKey, role string) Key {
	return K("rel", CongressSeg(congress), docKey, role)
}

// RelationCongressPrefix addresses every edge of one congress.
func RelationCongressPrefix(congress int) Key {
	return K("rel", CongressSeg(congress))
}
