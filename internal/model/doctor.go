package model

// Doctor 医生档案，由档案服务维护，本服务只读
type Doctor struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	IdentifierCode string  `gorm:"column:identifierCode;type:varchar(50);uniqueIndex" json:"identifierCode"`
	SupabaseID     *string `gorm:"column:supabase_id;type:varchar(36);uniqueIndex" json:"supabaseId"`
	FirstName      string  `gorm:"column:firstName;type:varchar(100)" json:"firstName"`
	LastName1      string  `gorm:"column:lastName1;type:varchar(100)" json:"lastName1"`
	Speciality     string  `gorm:"column:speciality;type:varchar(100)" json:"speciality"`
	Email          string  `gorm:"column:email;type:varchar(120)" json:"email"`
	IsDeleted      bool    `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`
}

func (Doctor) TableName() string { return "doctors" }

// DisplayName 聊天中展示的名字
func (d *Doctor) DisplayName() string {
	if d.LastName1 == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName1
}
