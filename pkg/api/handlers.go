package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/indexer"
	"github.com/civicdata/lexcache/pkg/resolver"
	"github.com/civicdata/lexcache/pkg/types"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePeople(c *gin.Context) {
	page := intQuery(c, "page", 0)
	limit := intQuery(c, "limit", 50)
	people, total, err := s.resolver.People(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if people == nil {
		people = []types.PersonSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "rows": people})
}

func (s *Server) handlePerson(c *gin.Context) {
	view, err := s.resolver.Person(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeResolverError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handlePersonLookup resolves a person through one of the two secondary
// indexes: ?fullName= or ?nameCode=. Exactly one must be given.
func (s *Server) handlePersonLookup(c *gin.Context) {
	fullName := c.Query("fullName")
	nameCode := c.Query("nameCode")
	switch {
	case fullName != "" && nameCode == "":
		rec, err := s.resolver.ResolveByFullName(c.Request.Context(), fullName)
		if err != nil {
			writeResolverError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	case nameCode != "" && fullName == "":
		rec, err := s.resolver.ResolveByNameCode(c.Request.Context(), nameCode)
		if err != nil {
			writeResolverError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of fullName or nameCode is required"})
	}
}

// handleCongresses lists the known congresses with their upstream API ids.
func (s *Server) handleCongresses(c *gin.Context) {
	type row struct {
		Congress   int `json:"congress"`
		UpstreamID int `json:"upstreamId"`
	}
	rows := make([]row, 0, s.cfg.Index.LatestCongress)
	for n := 1; n <= s.cfg.Index.LatestCongress; n++ {
		rows = append(rows, row{Congress: n, UpstreamID: congress.ToUpstream(n)})
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (s *Server) handleCongressDocuments(c *gin.Context) {
	cong, ok := congressParam(c)
	if !ok {
		return
	}
	page := intQuery(c, "page", 0)
	limit := intQuery(c, "limit", 20)
	rows, err := s.resolver.CongressDocuments(c.Request.Context(), cong, page, limit, c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"congress": cong, "page": page, "rows": rows})
}

func (s *Server) handleDocument(c *gin.Context) {
	cong, ok := congressParam(c)
	if !ok {
		return
	}
	row, err := s.resolver.Document(c.Request.Context(), cong, c.Param("key"))
	if err != nil {
		writeResolverError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleCommittees(c *gin.Context) {
	committees, err := s.resolver.Committees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if committees == nil {
		committees = []types.Committee{}
	}
	c.JSON(http.StatusOK, gin.H{"rows": committees})
}

func (s *Server) handleCommittee(c *gin.Context) {
	committee, err := s.resolver.Committee(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeResolverError(c, err)
		return
	}
	c.JSON(http.StatusOK, committee)
}

func (s *Server) handleIndexMembership(c *gin.Context) {
	rep, err := s.engine.IndexMembership(c.Request.Context(), indexOptions(c))
	writeReport(c, rep, err)
}

func (s *Server) handleIndexInformation(c *gin.Context) {
	rep, err := s.engine.IndexInformation(c.Request.Context(), indexOptions(c))
	writeReport(c, rep, err)
}

func (s *Server) handleIndexCommittees(c *gin.Context) {
	rep, err := s.engine.IndexCommittees(c.Request.Context(), indexOptions(c))
	writeReport(c, rep, err)
}

func (s *Server) handleIndexCongressDocuments(c *gin.Context) {
	cong, ok := congressParam(c)
	if !ok {
		return
	}
	rep, err := s.engine.IndexCongressDocuments(c.Request.Context(), cong, indexOptions(c))
	writeReport(c, rep, err)
}

func (s *Server) handleIndexCommitteeRelations(c *gin.Context) {
	cong, ok := congressParam(c)
	if !ok {
		return
	}
	rep, err := s.engine.IndexCommitteeRelations(c.Request.Context(), cong, indexOptions(c))
	writeReport(c, rep, err)
}

func (s *Server) handleIndexDocumentInfo(c *gin.Context) {
	cong, ok := congressParam(c)
	if !ok {
		return
	}
	key := c.Param("key")
	found, err := s.engine.IndexDocumentInfo(c.Request.Context(), cong, key)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found upstream"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"congress": cong, "docKey": key, "indexed": true})
}

// indexOptions reads the chunk cursor and scoping parameters shared by
// the trigger endpoints.
func indexOptions(c *gin.Context) indexer.Options {
	return indexer.Options{
		PersonID:   c.Query("personId"),
		StartIndex: intQuery(c, "start", 0),
		ChunkSize:  intQuery(c, "chunkSize", 0),
	}
}

// writeReport maps an indexing outcome to a response. Structural failures
// are 502; a completed chunk with exhausted units is 200 with the failure
// list in the body, since the chunk itself did its work.
func writeReport(c *gin.Context, rep *types.IndexReport, err error) {
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func writeResolverError(c *gin.Context, err error) {
	if errors.Is(err, resolver.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func congressParam(c *gin.Context) (int, bool) {
	cong, err := strconv.Atoi(c.Param("congress"))
	if err != nil || cong <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid congress number"})
		return 0, false
	}
	return cong, true
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
