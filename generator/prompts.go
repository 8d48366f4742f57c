package generator

import (
	"fmt"
	"strings"
)

const threadPrompt = `Act as a social media copywriter. Based on the following video transcript, create a Twitter thread that summarizes the key takeaways, arguments, and interesting points.

Video Title: %s
Transcript: %s

Requirements:
1. Create a coherent Twitter thread with 4-6 numbered tweets (Tweet 1:, Tweet 2:, etc.)
2. Each tweet must be under 280 characters
3. Focus on the most valuable insights and key points
4. Make it engaging and shareable
5. The final tweet should include a CTA: "Watch the full video here: %s"
6. Format as:
Tweet 1: [content]
Tweet 2: [content]
etc.

Generate the Twitter thread:`

const suggestionsIntro = `Act as a video editor and content strategist. Based on the following %s, identify 3-5 distinct, impactful moments that would work well as short-form clips for Instagram Reels or TikTok.

Video Title: %s
%s

For each suggestion, provide:
`

const timedSuggestionsFormat = `1. Start timestamp and end timestamp (format: MM:SS - MM:SS)
2. A short, engaging title for the clip
3. A punchy caption for social media (under 150 characters)
4. Brief explanation of why this moment works as a clip

Format your response as:
Clip 1:
Timestamp: [start] - [end]
Title: [title]
Caption: [caption]
Why it works: [explanation]

Generate 3-5 reel suggestions:`

const plainSuggestionsFormat = `1. A short, engaging title for the clip
2. A punchy caption for social media (under 150 characters)
3. Brief explanation of why this moment works as a clip

Format your response as:
Clip 1:
Title: [title]
Caption: [caption]
Why it works: [explanation]

Clip 2:
Title: [title]
Caption: [caption]
Why it works: [explanation]

Generate 3-5 reel suggestions:`

func buildThreadPrompt(title, transcript, url string) string {
	return fmt.Sprintf(threadPrompt, title, transcript, url)
}

func buildTimedSuggestionsPrompt(title, listing string) string {
	var b strings.Builder
	fmt.Fprintf(&b, suggestionsIntro, "timestamped video transcript", title, "Timestamped Transcript:\n"+listing)
	b.WriteString(timedSuggestionsFormat)
	return b.String()
}

func buildPlainSuggestionsPrompt(title, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, suggestionsIntro, "video transcript", title, "Transcript: "+transcript)
	b.WriteString(plainSuggestionsFormat)
	return b.String()
}
