package request

import (
	"go.einride.tech/aip/pagination"

	"github.com/louisbranch/battlecore/battleerr"
)

// LogPageRequest is the minimal shape a full_log pagination call needs,
// satisfying pagination.PageToken's request interface.
type LogPageRequest struct {
	PageSize  int32
	PageToken string
}

// GetPageToken implements the interface go.einride.tech/aip/pagination
// expects of a paginated request.
func (r LogPageRequest) GetPageToken() string { return r.PageToken }

// GetPageSize implements the other half of that interface; PageToken's
// request parameter needs both accessors, not just GetPageToken.
func (r LogPageRequest) GetPageSize() int32 { return r.PageSize }

// LogPage is one page of a battle log's lines plus the token to fetch the
// next one.
type LogPage struct {
	Lines         []string
	NextPageToken string
}

// PageLog slices lines into a page starting at req's offset (decoded from
// its page token), sized by req.PageSize, mirroring the teacher's
// `internal/platform/grpc/pagination` use of go.einride.tech/aip/pagination
// for offset-based paging over a full_log result too large to return in
// one call (spec.md §6 `full_log(side)` extended for paging).
func PageLog(lines []string, req LogPageRequest) (LogPage, error) {
	token, err := pagination.ParsePageToken(req)
	if err != nil {
		return LogPage{}, battleerr.Wrap(battleerr.CodeValidation, err, "invalid page token")
	}
	offset := int(token.Offset)
	if offset < 0 || offset > len(lines) {
		return LogPage{}, battleerr.Newf(battleerr.CodeValidation, "page token offset %d out of range", offset)
	}
	size := int(req.PageSize)
	if size <= 0 {
		size = len(lines) - offset
	}
	end := offset + size
	if end > len(lines) {
		end = len(lines)
	}
	page := LogPage{Lines: append([]string(nil), lines[offset:end]...)}
	if end < len(lines) {
		next := pagination.PageToken{Offset: int64(end)}
		page.NextPageToken = next.String()
	}
	return page, nil
}
