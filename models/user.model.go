package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the account role
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// BusinessType describes a seller's legal form
type BusinessType string

const (
	BusinessIndividual  BusinessType = "individual"
	BusinessPartnership BusinessType = "partnership"
	BusinessCompany     BusinessType = "company"
	BusinessOther       BusinessType = "other"
)

// DefaultProfileImage is shown for users who never uploaded a picture
const DefaultProfileImage = "https://cdn-icons-png.flaticon.com/512/3135/3135715.png"

// User represents an account in the directory
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                string             `bson:"name" json:"name"`
	Email               string             `bson:"email" json:"email"`
	Password            string             `bson:"password" json:"-"`
	Role                Role               `bson:"role" json:"role"`
	Phone               string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address             string             `bson:"address,omitempty" json:"address,omitempty"`
	City                string             `bson:"city,omitempty" json:"city,omitempty"`
	State               string             `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode          string             `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	ProfileImage        string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	ProfileImageID      string             `bson:"profileImageId,omitempty" json:"profileImageId,omitempty"`
	ShopName            string             `bson:"shopName,omitempty" json:"shopName,omitempty"`
	BusinessType        BusinessType       `bson:"businessType" json:"businessType"`
	GSTNumber           string             `bson:"gstNumber,omitempty" json:"gstNumber,omitempty"`
	IsProfileComplete   bool               `bson:"isProfileComplete" json:"isProfileComplete"`
	ResetPasswordToken  string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpire *time.Time         `bson:"resetPasswordExpire,omitempty" json:"-"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewUser builds a user with lowercased email and role/business defaults applied
func NewUser(name, email, passwordHash string, role Role) *User {
	if role == "" {
		role = RoleBuyer
	}
	now := time.Now().UTC()
	return &User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		Password:     passwordHash,
		Role:         role,
		BusinessType: BusinessOther,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ComputeProfileComplete reports whether every required contact field is
// filled, plus the business fields for sellers.
func (u *User) ComputeProfileComplete() bool {
	general := []string{u.Name, u.Phone, u.Address, u.City, u.State, u.PostalCode}
	if !allFilled(general) {
		return false
	}
	if u.Role == RoleSeller {
		business := []string{u.ShopName, string(u.BusinessType), u.GSTNumber}
		if !allFilled(business) || u.GSTNumber == "N/A" {
			return false
		}
	}
	return true
}

func allFilled(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// ProfileView is the public projection of a user with display defaults applied
type ProfileView struct {
	ID                primitive.ObjectID `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Role              Role               `json:"role"`
	Phone             string             `json:"phone"`
	Address           string             `json:"address,omitempty"`
	City              string             `json:"city,omitempty"`
	State             string             `json:"state,omitempty"`
	PostalCode        string             `json:"postalCode,omitempty"`
	ProfileImage      string             `json:"profileImage"`
	ShopName          string             `json:"shopName,omitempty"`
	BusinessType      BusinessType       `json:"businessType,omitempty"`
	GSTNumber         string             `json:"gstNumber,omitempty"`
	IsProfileComplete bool               `json:"isProfileComplete"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// NewProfileView projects u, substituting the default image and "N/A" phone
func NewProfileView(u *User) ProfileView {
	view := ProfileView{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		Phone:             u.Phone,
		Address:           u.Address,
		City:              u.City,
		State:             u.State,
		PostalCode:        u.PostalCode,
		ProfileImage:      u.ProfileImage,
		ShopName:          u.ShopName,
		BusinessType:      u.BusinessType,
		GSTNumber:         u.GSTNumber,
		IsProfileComplete: u.IsProfileComplete,
		CreatedAt:         u.CreatedAt,
	}
	if view.ProfileImage == "" {
		view.ProfileImage = DefaultProfileImage
	}
	if view.Phone == "" {
		view.Phone = "N/A"
	}
	return view
}
