package services

import (
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/ytq/internal/models"
	"google.golang.org/api/youtube/v3"
)

// DefaultCategoryID is "People & Blogs".
const DefaultCategoryID = "22"

const tagQuotes = "\"'“”‘’"

// ParseTags splits a raw tag string on commas and whitespace, strips surrounding quotes and drops empty tokens.
//
// "a, b ,c", "a b c" and "a,  b,c" all yield [a b c].
func ParseTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if tag := strings.Trim(f, tagQuotes); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// BuildVideo builds the insert payload for job.
//
// A job with a publish instant is always sent as private, whatever privacy it asks for.
func BuildVideo(job *models.UploadJob, opts UploaderOpts) *youtube.Video {
	category := opts.CategoryID
	if category == "" {
		category = DefaultCategoryID
	}

	privacy := job.Privacy
	if privacy == "" {
		privacy = models.PrivacyPrivate
	}

	status := &youtube.VideoStatus{
		PrivacyStatus:           string(privacy),
		SelfDeclaredMadeForKids: false,
		ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
	}
	if job.PublishAt != nil {
		status.PrivacyStatus = string(models.PrivacyPrivate)
		status.PublishAt = job.PublishAt.UTC().Format(time.RFC3339)
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                job.Title,
			Description:          job.Description,
			Tags:                 ParseTags(job.Tags),
			CategoryId:           category,
			DefaultLanguage:      opts.Language,
			DefaultAudioLanguage: opts.Language,
		},
		Status: status,
	}
}
