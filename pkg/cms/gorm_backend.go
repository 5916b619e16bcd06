package cms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoredRecord 本地模式下所有集合共用的一张表
type StoredRecord struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	Collection string         `gorm:"size:64;index;not null"`
	DocumentID string         `gorm:"size:32;uniqueIndex;not null"`
	Data       datatypes.JSON `gorm:"type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (StoredRecord) TableName() string {
	return "cms_records"
}

// GormBackend 基于数据库的本地后端，语义与 MemoryBackend 一致
type GormBackend struct {
	DB *gorm.DB
}

func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{DB: db}
}

func (g *GormBackend) lookupFn(ctx context.Context) lookupFunc {
	cache := map[string]map[string]any{}
	return func(documentID string) (map[string]any, bool) {
		if f, ok := cache[documentID]; ok {
			return f, f != nil
		}
		var row StoredRecord
		if err := g.DB.WithContext(ctx).Where("document_id = ?", documentID).First(&row).Error; err != nil {
			cache[documentID] = nil
			return nil, false
		}
		f, err := decodeRow(row)
		if err != nil {
			cache[documentID] = nil
			return nil, false
		}
		cache[documentID] = f
		return f, true
	}
}

func decodeRow(row StoredRecord) (map[string]any, error) {
	fields := map[string]any{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &fields); err != nil {
			return nil, err
		}
	}
	fields["id"] = float64(row.ID)
	fields["documentId"] = row.DocumentID
	fields["createdAt"] = FormatTime(row.CreatedAt)
	fields["updatedAt"] = FormatTime(row.UpdatedAt)
	return fields, nil
}

func encodeFields(fields map[string]any) (datatypes.JSON, error) {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "id", "documentId", "createdAt", "updatedAt":
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	return datatypes.JSON(raw), err
}

func (g *GormBackend) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	var rows []StoredRecord
	if err := g.DB.WithContext(ctx).Where("collection = ?", collection).Find(&rows).Error; err != nil {
		return nil, opErr("list", collection, http.StatusInternalServerError, "query failed", err)
	}
	lookup := g.lookupFn(ctx)
	var hits []map[string]any
	for _, row := range rows {
		f, err := decodeRow(row)
		if err != nil {
			return nil, opErr("list", collection, http.StatusInternalServerError, "decode failed", err)
		}
		if matches(f, q, lookup) {
			hits = append(hits, f)
		}
	}
	sortFields(hits, q.Sort)
	hits = limit(hits, q.PageSize)

	out := make([]Record, 0, len(hits))
	for _, f := range hits {
		out = append(out, present(f, q.Populate, lookup))
	}
	return out, nil
}

func (g *GormBackend) find(db *gorm.DB, op, collection, documentID string) (*StoredRecord, error) {
	var row StoredRecord
	err := db.Where("collection = ? AND document_id = ?", collection, documentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, opErr(op, collection, http.StatusNotFound, "record not found", err)
	}
	if err != nil {
		return nil, opErr(op, collection, http.StatusInternalServerError, "query failed", err)
	}
	return &row, nil
}

// forUpdate MySQL 下加行锁；SQLite 整库串行写，不支持 FOR UPDATE
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (g *GormBackend) Get(ctx context.Context, collection, documentID string, populate ...string) (*Record, error) {
	row, err := g.find(g.DB.WithContext(ctx), "get", collection, documentID)
	if err != nil {
		return nil, err
	}
	f, err := decodeRow(*row)
	if err != nil {
		return nil, opErr("get", collection, http.StatusInternalServerError, "decode failed", err)
	}
	r := present(f, populate, g.lookupFn(ctx))
	return &r, nil
}

func (g *GormBackend) Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*Record, error) {
	fields, err := normalize(data)
	if err != nil {
		return nil, opErr("create", collection, http.StatusBadRequest, "invalid payload", err)
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	payload, err := encodeFields(fields)
	if err != nil {
		return nil, opErr("create", collection, http.StatusBadRequest, "encode failed", err)
	}
	row := StoredRecord{Collection: collection, DocumentID: newDocumentID(), Data: payload}
	if err := g.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, opErr("create", collection, http.StatusInternalServerError, "insert failed", err)
	}
	f, _ := decodeRow(row)
	r := present(f, populate, g.lookupFn(ctx))
	return &r, nil
}

// Update 读取、合并、写回在同一事务内完成，并发补丁不会互相覆盖
func (g *GormBackend) Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*Record, error) {
	patch, err := normalize(data)
	if err != nil {
		return nil, opErr("update", collection, http.StatusBadRequest, "invalid payload", err)
	}
	var row *StoredRecord
	err = g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := g.find(forUpdate(tx), "update", collection, documentID)
		if err != nil {
			return err
		}
		f, err := decodeRow(*found)
		if err != nil {
			return opErr("update", collection, http.StatusInternalServerError, "decode failed", err)
		}
		merge(f, patch)
		payload, err := encodeFields(f)
		if err != nil {
			return opErr("update", collection, http.StatusBadRequest, "encode failed", err)
		}
		found.Data = payload
		if err := tx.Save(found).Error; err != nil {
			return opErr("update", collection, http.StatusInternalServerError, "save failed", err)
		}
		row = found
		return nil
	})
	if err != nil {
		var cmsErr *Error
		if errors.As(err, &cmsErr) {
			return nil, cmsErr
		}
		return nil, opErr("update", collection, http.StatusInternalServerError, "transaction failed", err)
	}
	f, _ := decodeRow(*row)
	r := present(f, populate, g.lookupFn(ctx))
	return &r, nil
}

func (g *GormBackend) Delete(ctx context.Context, collection, documentID string) error {
	res := g.DB.WithContext(ctx).
		Where("collection = ? AND document_id = ?", collection, documentID).
		Delete(&StoredRecord{})
	if res.Error != nil {
		return opErr("delete", collection, http.StatusInternalServerError, "delete failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return opErr("delete", collection, http.StatusNotFound, "record not found", nil)
	}
	return nil
}
