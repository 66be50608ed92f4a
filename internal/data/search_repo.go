package data

import (
	"context"
	"database/sql"

	"nominatim-indexer/internal/biz"

	entsql "entgo.io/ent/dialect/sql"
)

// NewSearchRepo .
func NewSearchRepo(d *Data) biz.SearchRepo {
	return &searchRepo{data: d, places: &placeRepo{data: d}}
}

type searchRepo struct {
	data   *Data
	places *placeRepo
}

func (r *searchRepo) sqlDB() *sql.DB {
	return r.data.SQLDB()
}

// AddressRows 读取地址链（place_addressline 关联 placex 取祖先名称）。
func (r *searchRepo) AddressRows(ctx context.Context, placeID int64) ([]biz.AddressRowItem, error) {
	b := entsql.Dialect(r.data.dialect)
	a := b.Table(tableAddressLine).As("a")
	p := b.Table(tablePlace).As("p")
	query, args := b.Select(
		a.C("address_place_id"), p.C("class"), p.C("type"), p.C("name"), p.C("merged_name"),
		p.C("admin_level"), a.C("cached_rank_address"), a.C("distance"), a.C("isaddress"), a.C("fromarea"),
	).
		From(a).
		Join(p).On(a.C("address_place_id"), p.C("place_id")).
		Where(entsql.EQ(a.C("place_id"), placeID)).
		OrderBy(entsql.Desc(a.C("cached_rank_address")), a.C("distance")).
		Query()
	rows, err := r.sqlDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []biz.AddressRowItem
	for rows.Next() {
		var (
			item          biz.AddressRowItem
			name, mergedN sql.NullString
		)
		if err := rows.Scan(&item.PlaceID, &item.Class, &item.Type, &name, &mergedN,
			&item.AdminLevel, &item.Rank, &item.Distance, &item.IsAddress, &item.FromArea); err != nil {
			return nil, err
		}
		names := decodeTags(mergedN)
		if len(names) == 0 {
			names = decodeTags(name)
		}
		item.Name = names["name"]
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPlaces 分页列出要素，按 place_id 排序。
func (r *searchRepo) ListPlaces(ctx context.Context, cond biz.FindByPageCond, status *biz.IndexedStatus) ([]*biz.Place, int64, error) {
	b := entsql.Dialect(r.data.dialect)
	where := func() *entsql.Predicate {
		if status != nil {
			return entsql.EQ("indexed_status", int(*status))
		}
		return entsql.GTE("place_id", 0)
	}
	query, args := b.Select(entsql.Count("*")).From(entsql.Table(tablePlace)).Where(where()).Query()
	var total int64
	if err := r.sqlDB().QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, args = b.Select(placeColumns...).From(entsql.Table(tablePlace)).
		Where(where()).
		OrderBy("place_id").
		Limit(cond.Limit()).
		Offset(cond.Offset()).
		Query()
	places, err := r.places.scanAll(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return places, total, nil
}
