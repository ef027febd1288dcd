package service

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// demoNamespace 演示数据的确定性 UUID 命名空间
var demoNamespace = uuid.MustParse("6f1c2d0e-3b5a-4c8e-9a7d-2e4f6b8c0a1d")

var demoDoctors = []*model.Doctor{
	{ID: 1, FirstName: "Juan", LastName1: "Pérez", Speciality: "Cardiología", Email: "juan.perez@hospital.com"},
	{ID: 2, FirstName: "María", LastName1: "González", Speciality: "Neurología", Email: "maria.gonzalez@hospital.com"},
	{ID: 3, FirstName: "Carlos", LastName1: "López", Speciality: "Pediatría", Email: "carlos.lopez@hospital.com"},
}

func init() {
	for _, d := range demoDoctors {
		ext := uuid.NewSHA1(demoNamespace, []byte("doctor-"+strconv.FormatUint(d.ID, 10))).String()
		d.SupabaseID = &ext
	}
}

// DoctorService 聊天通讯录与展示名，repo 为 nil 时为演示模式
type DoctorService interface {
	ListChatDoctors(ctx context.Context, user *Session) (*dto.DoctorsResp, error)
	DisplayName(ctx context.Context, u identity.UserID) (string, bool)
	FirstLoginCandidate(ctx context.Context) (*model.Doctor, error)
}

type doctorServiceImpl struct {
	repo     repository.DoctorRepo
	resolver *identity.Resolver
}

func NewDoctorService(repo repository.DoctorRepo, resolver *identity.Resolver) DoctorService {
	return &doctorServiceImpl{repo: repo, resolver: resolver}
}

// ListChatDoctors 只列出已有外部 ID 的医生，不含自己
func (s *doctorServiceImpl) ListChatDoctors(ctx context.Context, user *Session) (*dto.DoctorsResp, error) {
	if s.repo == nil {
		doctors, err := toChatDoctors(demoDoctors)
		if err != nil {
			return nil, err
		}
		return &dto.DoctorsResp{Doctors: doctors, DemoMode: true}, nil
	}

	list, err := s.repo.ListChatDoctors(ctx, s.resolver.Aliases(ctx, user.User))
	if err != nil {
		log.ErrorContext(ctx, "List chat doctors failed", "err", err)
		return nil, UnExpectedError
	}
	doctors, err := toChatDoctors(list)
	if err != nil {
		return nil, err
	}
	return &dto.DoctorsResp{Doctors: doctors}, nil
}

func (s *doctorServiceImpl) DisplayName(ctx context.Context, u identity.UserID) (string, bool) {
	if s.repo == nil {
		for _, d := range demoDoctors {
			if ext, ok := u.ExternalID(); ok && *d.SupabaseID == ext.String() {
				return d.DisplayName(), true
			}
		}
		return "", false
	}
	doctor, err := s.repo.GetByUserID(ctx, u)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WarnContext(ctx, "Doctor lookup failed", "user", u.String(), "err", err)
		}
		return "", false
	}
	return doctor.DisplayName(), true
}

// FirstLoginCandidate 演示登录使用的医生
func (s *doctorServiceImpl) FirstLoginCandidate(ctx context.Context) (*model.Doctor, error) {
	if s.repo == nil {
		return nil, ErrDoctorNotFound
	}
	doctor, err := s.repo.FirstWithExternalID(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		log.ErrorContext(ctx, "Load demo login doctor failed", "err", err)
		return nil, UnExpectedError
	}
	return doctor, nil
}

func toChatDoctors(list []*model.Doctor) ([]*dto.ChatDoctorDTO, error) {
	res := make([]*dto.ChatDoctorDTO, 0, len(list))
	for _, d := range list {
		item := &dto.ChatDoctorDTO{}
		if err := copier.Copy(item, d); err != nil {
			return nil, err
		}
		if d.SupabaseID != nil {
			item.SupabaseID = *d.SupabaseID
		}
		res = append(res, item)
	}
	return res, nil
}
