package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"hive/src/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

type GroupInput struct {
	Name       string            `json:"name" validate:"required,max=120"`
	About      string            `json:"about" validate:"max=2000"`
	Visibility models.Visibility `json:"visibility" validate:"required,oneof=open request private"`
	InviteCode string            `json:"invite_code" validate:"max=128"`
}

func (in *GroupInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.About = strings.TrimSpace(in.About)
	in.Visibility = models.Visibility(strings.ToLower(strings.TrimSpace(string(in.Visibility))))
	in.InviteCode = strings.TrimSpace(in.InviteCode)
}

type AccessInput struct {
	Visibility models.Visibility `json:"visibility" validate:"required,oneof=open request private"`
	InviteCode string            `json:"invite_code" validate:"max=128"`
}

func (in *AccessInput) normalize() {
	in.Visibility = models.Visibility(strings.ToLower(strings.TrimSpace(string(in.Visibility))))
	in.InviteCode = strings.TrimSpace(in.InviteCode)
}

type EventInput struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=5000"`
	TypeLabel   string             `json:"type_label" validate:"max=60"`
	StartsAt    int64              `json:"starts_at" validate:"required,gt=0"`
	EndsAt      int64              `json:"ends_at" validate:"gte=0"`
	ImageURL    string             `json:"image_url" validate:"omitempty,url,max=2048"`
	MoreInfoURL string             `json:"more_info_url" validate:"omitempty,url,max=2048"`
	Status      models.EventStatus `json:"status" validate:"omitempty,oneof=draft published"`
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.TypeLabel = strings.TrimSpace(in.TypeLabel)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.MoreInfoURL = strings.TrimSpace(in.MoreInfoURL)
	in.Status = models.EventStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
}

type PostInput struct {
	Body     string `json:"body" validate:"required,max=10000"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
	ImageURL string `json:"image_url" validate:"omitempty,url,max=2048"`
	VideoURL string `json:"video_url" validate:"omitempty,url,max=2048"`
	LinkURL  string `json:"link_url" validate:"omitempty,url,max=2048"`
}

func (in *PostInput) normalize() {
	in.Body = strings.TrimSpace(in.Body)
	in.ParentID = strings.TrimSpace(in.ParentID)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.LinkURL = strings.TrimSpace(in.LinkURL)
}

type EditInput struct {
	Body string `json:"body" validate:"required,max=10000"`
}

func (in *EditInput) normalize() {
	in.Body = strings.TrimSpace(in.Body)
}

type CurationInput struct {
	Curated bool   `json:"curated"`
	Title   string `json:"title" validate:"max=200"`
}

// validateInput runs struct tags and reports the first failing field.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &Error{Kind: KindInvalidInput, Message: fieldMessage(fe), Err: err}
	}
	return &Error{Kind: KindInvalidInput, Message: "invalid input", Err: err}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid url", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validateEventInput(in EventInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.EndsAt != 0 && in.EndsAt < in.StartsAt {
		return &Error{Kind: KindInvalidInput, Message: "ends_at must not be before starts_at"}
	}
	return nil
}
