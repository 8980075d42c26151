package repository

import "github.com/eslsoft/deeplisten/pkg/filterexpr"

var listJobsSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"status": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Status",
				filterexpr.OpIN: "Statuses",
			},
		},
		"kind": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Kind",
				filterexpr.OpIN: "Kinds",
			},
		},
		"created_at": {
			Kind: filterexpr.KindTimestamp,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "CreatedAfter",
				filterexpr.OpLTE: "CreatedBefore",
			},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		FallbackDesc:       false,
		Fields: map[string]filterexpr.OrderField{
			"created_at":  {Expr: "created_at"},
			"finished_at": {Expr: "finished_at"},
			"id":          {Expr: "id"},
		},
	},
}
