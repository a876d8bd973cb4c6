package prompt

import (
	"fmt"
	"strings"
)

// 画像プロンプトのラベル
const (
	ImagePromptLabel    = "IMAGE PROMPT:"
	NegativePromptLabel = "NEGATIVE PROMPT:"
)

// DefaultNegativePrompt はモデル出力にネガティブプロンプトがない場合に使用する。
const DefaultNegativePrompt = "blurry, low quality, distorted, text, watermark, logos, extra fingers"

const postIdeaTemplate = `You are an AI Business Growth Content Assistant for small businesses.
Create ONE social media post based on the business details below.
Keep it simple and realistic. Do not create images.

BUSINESS DETAILS:
%s

Format:
POST IDEA: [Details]
CAPTION: [Hook/Body/CTA]
HASHTAGS: [5-8]
IMAGE DESCRIPTION (TEXT): [Human description]
`

const imagePromptsTemplate = `You are an expert prompt writer for an AI image model.
The following social media post has been approved by the business owner.
Write a prompt for a single photorealistic image that fits the post.

APPROVED POST:
%s

Rules:
- Photorealistic, 4:5 composition, minimalist background.
- No text, letters or logos in the image.

Output ONLY these two lines:
IMAGE PROMPT: [prompt]
NEGATIVE PROMPT: [comma-separated list]
`

// PostIdea は投稿案を生成するためのプロンプトを返す。
func PostIdea(details string) string {
	return fmt.Sprintf(postIdeaTemplate, strings.TrimSpace(details))
}

// ImagePrompts は承認済み投稿から画像プロンプトを導出するためのプロンプトを返す。
func ImagePrompts(postContent string) string {
	return fmt.Sprintf(imagePromptsTemplate, strings.TrimSpace(postContent))
}

// ParseImagePrompts はモデル出力を画像プロンプトとネガティブプロンプトに分割する。
// NEGATIVE PROMPT:がない場合、ネガティブプロンプトはDefaultNegativePromptになる。
// 画像プロンプトが見つからない場合、imageは空文字列になる。
func ParseImagePrompts(raw string) (image, negative string) {
	before, after, found := strings.Cut(raw, NegativePromptLabel)

	if i := strings.Index(before, ImagePromptLabel); i >= 0 {
		before = before[i+len(ImagePromptLabel):]
	}
	image = strings.TrimSpace(before)

	if found {
		negative = strings.TrimSpace(after)
	}
	if negative == "" {
		negative = DefaultNegativePrompt
	}
	return image, negative
}
