package dto

// ChatDoctorDTO 聊天通讯录中的医生
type ChatDoctorDTO struct {
	ID         uint64 `json:"id"`
	SupabaseID string `json:"supabase_id"`
	FirstName  string `json:"firstName"`
	LastName1  string `json:"lastName1"`
	Speciality string `json:"speciality"`
	Email      string `json:"email"`
}

type DoctorsResp struct {
	Doctors  []*ChatDoctorDTO `json:"doctors"`
	DemoMode bool             `json:"demo_mode"`
}

// DemoLoginReq 演示登录，名字可选
type DemoLoginReq struct {
	Name string `json:"name" binding:"omitempty,max=80"`
}

type DemoLoginResp struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	DoctorID uint64 `json:"doctor_id,omitempty"`
	Name     string `json:"name"`
}
