package connectrpc

import (
	"fmt"
	"math"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const (
	_defaultPageSize = 20
	_maxPageSize     = 100
)

func convertPagination(p *backupv1.PaginationRequest) repository.Pagination {
	var pageNo, pageSize int32
	if p != nil {
		pageNo, pageSize = p.PageNo, p.PageSize
	}
	if pageSize <= 0 {
		pageSize = _defaultPageSize
	}
	return repository.Pagination{PageNo: max(pageNo, 1), PageSize: min(pageSize, _maxPageSize)}
}

// toPaginationResponse echoes the served page; totals beyond int32 are an
// internal error rather than a silently wrapped count.
func toPaginationResponse(page repository.Pagination, total int64) (*backupv1.PaginationResponse, error) {
	if total > math.MaxInt32 || total < 0 {
		return nil, fmt.Errorf("total out of int32 range: %d", total)
	}
	return &backupv1.PaginationResponse{PageNo: page.PageNo, Total: int32(total)}, nil
}
