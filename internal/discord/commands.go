package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/services/tasks"
)

const helpText = "Commands:\n" +
	"/tasks — list tasks assigned to you\n" +
	"/create project:<name> name:<task> [priority:<low|medium|high>] [due:<YYYY-MM-DD>] — create a task\n" +
	"/complete name:<task> — mark one of your tasks completed\n" +
	"/summary — per-project task counts\n" +
	"/priorities — your open tasks, highest priority first\n" +
	"/claude prompt:<text> — ask the assistant\n" +
	"/link user_id:<id> — link this Discord account to your user"

func (h *Handler) cmdLink(ctx context.Context, invoker interactionUser, userID string) string {
	if userID == "" {
		return "Usage: /link user_id:<id>"
	}
	u, err := h.app.Users.LinkDiscord(ctx, userID, invoker.ID)
	if err != nil {
		return "Could not link: " + friendly(err)
	}
	return fmt.Sprintf("Linked this Discord account to %s.", u.Name)
}

func (h *Handler) cmdTasks(ctx context.Context, userID string) string {
	assigned, err := h.app.Tasks.ListAssignedTo(ctx, userID)
	if err != nil {
		return friendly(err)
	}
	open := assigned[:0:0]
	for _, t := range assigned {
		if t.Status != task.StatusCompleted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return "You have no open tasks."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your open tasks (%d):\n", len(open))
	for _, t := range open {
		writeTaskLine(&b, t)
	}
	return b.String()
}

func (h *Handler) cmdCreate(ctx context.Context, userID string, in interaction) string {
	projectName := in.option("project")
	name := in.option("name")
	if projectName == "" || name == "" {
		return "Usage: /create project:<name> name:<task>"
	}
	proj, errMsg := h.findProject(ctx, userID, projectName)
	if errMsg != "" {
		return errMsg
	}
	created, err := h.app.Tasks.Create(ctx, userID, tasks.CreateInput{
		ProjectID: proj,
		Name:      name,
		Priority:  in.option("priority"),
		DueDate:   in.option("due"),
	})
	if err != nil {
		return friendly(err)
	}
	return fmt.Sprintf("Created task %q in %s.", created.Name, projectName)
}

func (h *Handler) cmdComplete(ctx context.Context, userID, name string) string {
	if name == "" {
		return "Usage: /complete name:<task>"
	}
	assigned, err := h.app.Tasks.ListAssignedTo(ctx, userID)
	if err != nil {
		return friendly(err)
	}
	var matches []task.Task
	for _, t := range assigned {
		if t.Status != task.StatusCompleted && strings.EqualFold(t.Name, name) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Sprintf("No open task of yours is named %q.", name)
	case 1:
		if _, err := h.app.Tasks.Complete(ctx, userID, matches[0].ID); err != nil {
			return friendly(err)
		}
		return fmt.Sprintf("Completed %q.", matches[0].Name)
	default:
		return fmt.Sprintf("%d tasks match %q; rename one or complete it via the API.", len(matches), name)
	}
}

func (h *Handler) cmdSummary(ctx context.Context, userID string) string {
	projects, err := h.app.Projects.List(ctx, userID)
	if err != nil {
		return friendly(err)
	}
	if len(projects) == 0 {
		return "You are not a member of any project."
	}
	var b strings.Builder
	b.WriteString("Project summary:\n")
	for _, p := range projects {
		list, err := h.app.Tasks.List(ctx, userID, p.ID)
		if err != nil {
			continue
		}
		counts := map[task.Status]int{}
		for _, t := range list {
			counts[t.Status]++
		}
		fmt.Fprintf(&b, "- %s: %d pending, %d in progress, %d completed\n",
			p.Name, counts[task.StatusPending], counts[task.StatusInProgress], counts[task.StatusCompleted])
	}
	return b.String()
}

var priorityRank = map[task.Priority]int{
	task.PriorityHigh:   0,
	task.PriorityMedium: 1,
	task.PriorityLow:    2,
	task.PriorityNone:   3,
}

func (h *Handler) cmdPriorities(ctx context.Context, userID string) string {
	assigned, err := h.app.Tasks.ListAssignedTo(ctx, userID)
	if err != nil {
		return friendly(err)
	}
	open := assigned[:0:0]
	for _, t := range assigned {
		if t.Status != task.StatusCompleted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return "Nothing on your plate."
	}
	sort.SliceStable(open, func(i, j int) bool {
		return priorityRank[open[i].Priority] < priorityRank[open[j].Priority]
	})
	var b strings.Builder
	b.WriteString("By priority:\n")
	for _, t := range open {
		writeTaskLine(&b, t)
	}
	return b.String()
}

func (h *Handler) cmdClaude(ctx context.Context, userID, prompt string) string {
	if h.responder == nil {
		return "No assistant backend is configured."
	}
	if prompt == "" {
		return "Usage: /claude prompt:<text>"
	}
	reply, err := h.responder.Respond(ctx, userID, prompt)
	if err != nil {
		h.log.WithError(err).Warn("assistant backend failed")
		return "The assistant is unavailable right now."
	}
	return reply
}

// findProject resolves a project by case-insensitive name among the caller's
// projects. Returns the project ID or a user-facing error message.
func (h *Handler) findProject(ctx context.Context, userID, name string) (string, string) {
	list, err := h.app.Projects.List(ctx, userID)
	if err != nil {
		return "", friendly(err)
	}
	var ids []string
	for _, p := range list {
		if strings.EqualFold(p.Name, name) {
			ids = append(ids, p.ID)
		}
	}
	switch len(ids) {
	case 0:
		return "", fmt.Sprintf("You have no project named %q.", name)
	case 1:
		return ids[0], ""
	default:
		return "", fmt.Sprintf("%d of your projects are named %q; use the API instead.", len(ids), name)
	}
}

func writeTaskLine(b *strings.Builder, t task.Task) {
	line := "- " + t.Name
	if t.Priority != task.PriorityNone {
		line += " [" + string(t.Priority) + "]"
	}
	if !t.DueDate.IsZero() {
		line += " (due " + t.DueDate.Format("2006-01-02") + ")"
	}
	b.WriteString(line + "\n")
}

// friendly strips internal detail from service errors before they reach a
// chat channel.
func friendly(err error) string {
	if e := apperr.Get(err); e != nil && e.Kind != apperr.KindInternal {
		return e.Message
	}
	return "Something went wrong."
}
