package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Member struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Designation string    `gorm:"not null" json:"designation"`
	PhotoURL    string    `gorm:"column:photo_url" json:"photoUrl"`
	Bio         *string   `json:"bio,omitempty"`
	Contact     *string   `json:"contact,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

type Event struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	EventDate   Date      `gorm:"type:date;index" json:"eventDate"`
	Location    string    `json:"location"`
	ImageURL    string    `gorm:"column:image_url" json:"imageUrl"`
	IsFeatured  bool      `gorm:"column:is_featured;default:false" json:"isFeatured"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Message   string           `gorm:"not null" json:"message"`
	Type      NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	IsRead    bool             `gorm:"column:is_read;default:false" json:"isRead"`
	UserID    string           `gorm:"column:user_id;type:varchar(36);index" json:"userId"`
	CreatedAt time.Time        `gorm:"index" json:"createdAt"`
}

const RoleAdmin = "admin"

// Profile shares its primary key with the Account it describes.
type Profile struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FullName  string    `gorm:"not null" json:"fullName"`
	AvatarURL *string   `gorm:"column:avatar_url" json:"avatarUrl,omitempty"`
	Role      string    `gorm:"type:varchar(32);default:admin" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a contact-form submission.
type Message struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Body      string    `gorm:"column:message;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type Account struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"uniqueIndex;type:varchar(255)" json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Member) TableName() string       { return "members" }
func (Event) TableName() string        { return "events" }
func (Notification) TableName() string { return "notifications" }
func (Profile) TableName() string      { return "profiles" }
func (Message) TableName() string      { return "messages" }
func (Account) TableName() string      { return "accounts" }

func (m *Member) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (e *Event) BeforeCreate(*gorm.DB) error        { assignID(&e.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error { assignID(&n.ID); return nil }
func (m *Message) BeforeCreate(*gorm.DB) error      { assignID(&m.ID); return nil }
func (a *Account) BeforeCreate(*gorm.DB) error      { assignID(&a.ID); return nil }

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{&Account{}, &Profile{}, &Member{}, &Event{}, &Notification{}, &Message{}}
}

const DateLayout = "2006-01-02"

// Date is a calendar date without zone, stored in a DATE column and carried
// as YYYY-MM-DD. Lexical order equals chronological order.
type Date string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date(t.Format(DateLayout)), nil
}

func DateOf(t time.Time) Date { return Date(t.Format(DateLayout)) }

func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

func (d *Date) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = DateOf(x)
	case []byte:
		*d = Date(truncDate(string(x)))
	case string:
		*d = Date(truncDate(x))
	default:
		return fmt.Errorf("scan date: unsupported type %T", v)
	}
	return nil
}

func truncDate(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}
