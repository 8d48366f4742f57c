package handlers

import (
	"net/http"
	"strings"

	"github.com/nijaru/clipzaar/utils"
)

const defaultDemoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

const demoThread = `Tweet 1: Just watched a talk on building an audience without burning out. Here are the ideas worth stealing.

Tweet 2: Consistency beats intensity. One honest post a week outperforms a month of daily posts followed by silence.

Tweet 3: Show the work, not just the result. Drafts, dead ends and rewrites are the content people actually relate to.

Tweet 4: Treat every comment as research. The questions your audience asks are your next five topics.

Tweet 5: Watch the full video here: {url}`

const demoSuggestions = `Clip 1:
Title: "Consistency Over Intensity"
Caption: Posting every day for a month then vanishing? There's a better way.
Why it works: A clear, contrarian claim that lands in under 30 seconds.

Clip 2:
Title: "Show the Messy Middle"
Caption: Your rough drafts are more interesting than you think.
Why it works: Relatable for every creator and easy to pair with B-roll.

Clip 3:
Title: "Comments Are Research"
Caption: Your next five videos are already sitting in your comments.
Why it works: Actionable tip with an immediate payoff for viewers.`

// DemoHandler returns a canned result so clients can be exercised without
// downloading or calling any model.
func (h *Handler) DemoHandler(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		utils.HandleError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	url := strings.TrimSpace(req.videoURL())
	if url == "" {
		url = defaultDemoURL
	}

	utils.WriteJSON(w, http.StatusOK, processResponse{
		Success:         true,
		VideoTitle:      "Demo: Building an Audience Without Burning Out",
		Duration:        "15:00",
		TwitterThread:   strings.ReplaceAll(demoThread, "{url}", url),
		ReelSuggestions: demoSuggestions,
		Email:           req.Email,
		Degraded:        []string{},
	})
}
