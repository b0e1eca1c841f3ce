package model

// MemberFields is the payload of a member create.
type MemberFields struct {
	Name        string `json:"name" form:"name" binding:"required"`
	Designation string `json:"designation" form:"designation" binding:"required"`
	PhotoURL    string `json:"photoUrl" form:"photoUrl"`
	Bio         string `json:"bio" form:"bio"`
	Contact     string `json:"contact" form:"contact"`
}

// MemberPatch carries a partial update: nil fields are left untouched,
// non-nil fields are written even when empty.
type MemberPatch struct {
	Name        *string `json:"name"`
	Designation *string `json:"designation"`
	PhotoURL    *string `json:"photoUrl"`
	Bio         *string `json:"bio"`
	Contact     *string `json:"contact"`
}

func (p MemberPatch) Columns() map[string]any {
	cols := map[string]any{}
	setIf(cols, "name", p.Name)
	setIf(cols, "designation", p.Designation)
	setIf(cols, "photo_url", p.PhotoURL)
	setIf(cols, "bio", p.Bio)
	setIf(cols, "contact", p.Contact)
	return cols
}

type EventFields struct {
	Title       string `json:"title" form:"title" binding:"required"`
	Description string `json:"description" form:"description"`
	EventDate   Date   `json:"eventDate" form:"eventDate" binding:"required"`
	Location    string `json:"location" form:"location"`
	ImageURL    string `json:"imageUrl" form:"imageUrl"`
	IsFeatured  bool   `json:"isFeatured" form:"isFeatured"`
}

type EventPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	EventDate   *Date   `json:"eventDate"`
	Location    *string `json:"location"`
	ImageURL    *string `json:"imageUrl"`
	IsFeatured  *bool   `json:"isFeatured"`
}

func (p EventPatch) Columns() map[string]any {
	cols := map[string]any{}
	setIf(cols, "title", p.Title)
	setIf(cols, "description", p.Description)
	setIf(cols, "event_date", p.EventDate)
	setIf(cols, "location", p.Location)
	setIf(cols, "image_url", p.ImageURL)
	setIf(cols, "is_featured", p.IsFeatured)
	return cols
}

func setIf[T any](cols map[string]any, column string, v *T) {
	if v != nil {
		cols[column] = *v
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"fullName"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Role      string  `json:"role"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" form:"newPassword" binding:"required,min=8"`
}

type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required"`
}

// MonthCount is one bucket of a monthly series, labelled like "Jan 2026".
type MonthCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Statistics struct {
	TotalMembers   int          `json:"totalMembers"`
	NewMembers     int          `json:"newMembers"`
	TotalEvents    int          `json:"totalEvents"`
	UpcomingEvents int          `json:"upcomingEvents"`
	RecentMembers  []Member     `json:"recentMembers"`
	SoonestEvents  []Event      `json:"soonestEvents"`
	MemberJoins    []MonthCount `json:"memberJoins"`
	EventsByMonth  []MonthCount `json:"eventsByMonth"`
}
