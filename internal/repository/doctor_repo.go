package repository

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DoctorRepo 医生档案只读访问，同时作为身份映射来源
type DoctorRepo interface {
	ExternalByLegacy(ctx context.Context, legacy uint64) (uuid.UUID, bool, error)
	LegacyByExternal(ctx context.Context, external uuid.UUID) (uint64, bool, error)
	GetByUserID(ctx context.Context, u identity.UserID) (*model.Doctor, error)
	ListChatDoctors(ctx context.Context, exclude identity.Aliases) ([]*model.Doctor, error)
	FirstWithExternalID(ctx context.Context) (*model.Doctor, error)
}

type doctorRepoImpl struct {
	db *gorm.DB
}

func NewDoctorRepo(db *gorm.DB) DoctorRepo {
	return &doctorRepoImpl{db: db}
}

// ExternalByLegacy 旧 ID -> 外部 ID
func (s *doctorRepoImpl) ExternalByLegacy(ctx context.Context, legacy uint64) (uuid.UUID, bool, error) {
	var doctor model.Doctor
	err := s.db.WithContext(ctx).
		Select("id", "supabase_id").
		Where("id = ? AND is_deleted = ?", legacy, false).
		Take(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	if doctor.SupabaseID == nil {
		return uuid.Nil, false, nil
	}
	ext, ok := identity.ParseExternal(*doctor.SupabaseID)
	return ext, ok, nil
}

// LegacyByExternal 外部 ID -> 旧 ID
func (s *doctorRepoImpl) LegacyByExternal(ctx context.Context, external uuid.UUID) (uint64, bool, error) {
	var doctor model.Doctor
	err := s.db.WithContext(ctx).
		Select("id").
		Where("supabase_id = ? AND is_deleted = ?", external.String(), false).
		Take(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return doctor.ID, true, nil
}

// GetByUserID 按任一标识形式查询医生
func (s *doctorRepoImpl) GetByUserID(ctx context.Context, u identity.UserID) (*model.Doctor, error) {
	var doctor model.Doctor
	tx := s.db.WithContext(ctx).Where("is_deleted = ?", false)
	if legacy, ok := u.LegacyID(); ok {
		tx = tx.Where("id = ?", legacy)
	} else if ext, ok := u.ExternalID(); ok {
		tx = tx.Where("supabase_id = ?", ext.String())
	} else {
		return nil, gorm.ErrRecordNotFound
	}
	if err := tx.Take(&doctor).Error; err != nil {
		return nil, err
	}
	return &doctor, nil
}

// ListChatDoctors 只返回已经拥有外部 ID 的医生，并排除当前用户
func (s *doctorRepoImpl) ListChatDoctors(ctx context.Context, exclude identity.Aliases) ([]*model.Doctor, error) {
	var doctors []*model.Doctor
	tx := s.db.WithContext(ctx).
		Where("is_deleted = ? AND supabase_id IS NOT NULL AND supabase_id <> ''", false)
	if len(exclude.Legacy) > 0 {
		tx = tx.Where("id NOT IN ?", exclude.Legacy)
	}
	if len(exclude.External) > 0 {
		tx = tx.Where("supabase_id NOT IN ?", uuidStrings(exclude.External))
	}
	err := tx.Order("firstName ASC, lastName1 ASC, id ASC").Find(&doctors).Error
	return doctors, err
}

// FirstWithExternalID 演示登录使用的第一个可用医生
func (s *doctorRepoImpl) FirstWithExternalID(ctx context.Context) (*model.Doctor, error) {
	var doctor model.Doctor
	err := s.db.WithContext(ctx).
		Where("is_deleted = ? AND supabase_id IS NOT NULL AND supabase_id <> ''", false).
		Order("id ASC").
		First(&doctor).Error
	if err != nil {
		return nil, err
	}
	return &doctor, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		res = append(res, id.String())
	}
	return res
}
