package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ytq/internal/shared"
)

// ChannelID identifies one channel by its category folder and channel name.
type ChannelID struct {
	Category string
	Name     string
}

// ParseChannelID parses the "category/name" form used on the command line.
func ParseChannelID(s string) (ChannelID, error) {
	category, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return ChannelID{}, fmt.Errorf("%w: channel %q must be category/name", shared.ErrInvalidArgument, s)
	}
	ch := ChannelID{Category: strings.TrimSpace(category), Name: strings.TrimSpace(name)}
	if err := ch.Validate(); err != nil {
		return ChannelID{}, err
	}
	return ch, nil
}

// Validate rejects empty parts and anything that would escape the channel folder.
func (c ChannelID) Validate() error {
	for _, part := range []string{c.Category, c.Name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: bad channel identity %q", shared.ErrInvalidArgument, c.String())
		}
	}
	return nil
}

func (c ChannelID) String() string {
	return c.Category + "/" + c.Name
}
