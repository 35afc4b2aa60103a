package discord

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/h2non/filetype"

	"spritebot/marker"
)

const (
	embedColor = 0x7289da

	animationTitle         = "🎬 Animation Created!"
	animationReady         = "Your animated sprite is ready!"
	spriteReady            = "Your sprite has been created!"
	imageReady             = "Your image has been created! 🎨"
	imageFailed            = "I tried to create an image but encountered an issue."
	imageFormatFallback    = "Your image was created, but I had trouble formatting the result!"
	spriteFormatFallback   = "Your sprite has been created, but I had trouble formatting the result!"
	directionLinkSeparator = " · "
)

var errEmptyReply = errors.New("empty reply")

// deliver sends a pipeline reply, expanding any marker payload.
func (b *Bot) deliver(channelID string, ref *discordgo.MessageReference, text string) error {
	decoded := marker.Decode(text)

	if decoded.Payload == nil {
		body := decoded.Prose
		if marker.HasMarker(text) && body == "" {
			body = spriteFormatFallback
			if strings.Contains(text, marker.GeneratedImageToken) {
				body = imageFormatFallback
			}
		}
		return b.send(channelID, body, ref)
	}

	switch decoded.Payload.Kind {
	case marker.KindGeneratedImage:
		return b.deliverImages(channelID, ref, decoded.Prose, decoded.Payload.JSON)
	default:
		_, err := b.session.ChannelMessageSendComplex(channelID, renderSprite(decoded.Prose, decoded.Payload.JSON, ref))
		return err
	}
}

func (b *Bot) send(channelID, content string, ref *discordgo.MessageReference) error {
	if content == "" {
		return errEmptyReply
	}
	_, err := b.session.ChannelMessageSendReply(channelID, content, ref)
	return err
}

// deliverImages sends the prose, then each image URL as a reply to it so
// Discord unfurls them individually.
func (b *Bot) deliverImages(channelID string, ref *discordgo.MessageReference, prose string, data map[string]any) error {
	success, _ := data["success"].(bool)
	urls := imageURLs(data)
	if !success || len(urls) == 0 {
		if prose == "" {
			prose = imageFailed
		}
		return b.send(channelID, prose, ref)
	}

	if prose == "" {
		prose = imageReady
	}
	first, err := b.session.ChannelMessageSendReply(channelID, prose, ref)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if _, err := b.session.ChannelMessageSendReply(channelID, u, first.Reference()); err != nil {
			return fmt.Errorf("send image link: %w", err)
		}
	}
	return nil
}

// imageURLs accepts images as objects with a url field or as bare strings.
func imageURLs(data map[string]any) []string {
	items, _ := data["images"].([]any)
	var urls []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				urls = append(urls, v)
			}
		case map[string]any:
			if u, ok := v["url"].(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// renderSprite builds the embed for a sprite or animation payload. Inline
// data URIs become attachments referenced from the embed.
func renderSprite(prose string, data map[string]any, ref *discordgo.MessageReference) *discordgo.MessageSend {
	animationURL, _ := data["animationUrl"].(string)
	imageURL, _ := data["imageUrl"].(string)
	isAnimation := animationURL != ""
	displayURL := imageURL
	if isAnimation {
		displayURL = animationURL
	}

	embed := &discordgo.MessageEmbed{Color: embedColor}
	description := prose
	if isAnimation {
		embed.Title = animationTitle
		if description == "" {
			description = animationReady
		}
	} else if description == "" {
		description = spriteReady
	}
	if !isAnimation {
		if links := directionLinks(data["allDirections"]); links != "" {
			description += "\n\n" + links
		}
	}
	embed.Description = description

	msg := &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: ref,
	}

	switch {
	case strings.HasPrefix(displayURL, "data:"):
		name := "sprite"
		if isAnimation {
			name = "animation"
		}
		if file, ok := attachment(displayURL, name); ok {
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + file.Name}
			msg.Files = []*discordgo.File{file}
		}
	case displayURL != "":
		embed.Image = &discordgo.MessageEmbedImage{URL: displayURL}
	}
	return msg
}

func directionLinks(v any) string {
	items, _ := v.([]any)
	var links []string
	for _, item := range items {
		d, ok := item.(map[string]any)
		if !ok {
			continue
		}
		dir, _ := d["direction"].(string)
		u, _ := d["url"].(string)
		if dir == "" || u == "" {
			continue
		}
		links = append(links, fmt.Sprintf("[%s](%s)", dir, u))
	}
	return strings.Join(links, directionLinkSeparator)
}

// attachment decodes a base64 data URI into a file named base.ext. The
// extension comes from the declared MIME subtype, then from the content,
// then defaults to png.
func attachment(uri, base string) (*discordgo.File, bool) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, false
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 || mime == "" {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}

	ext := ""
	if _, sub, ok := strings.Cut(mime, "/"); ok {
		ext = sub
	}
	if ext == "" {
		if kind, err := filetype.Match(raw); err == nil && kind != filetype.Unknown {
			ext = kind.Extension
		}
	}
	if ext == "" {
		ext = "png"
	}

	return &discordgo.File{
		Name:        base + "." + ext,
		ContentType: mime,
		Reader:      bytes.NewReader(raw),
	}, true
}
