package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/util"
)

// Session interface represents the minimal session requirements for CLI operations
type Session interface {
	io.Reader
	io.Writer
}

// Handler processes CLI commands
type Handler struct {
	session  Session
	input    *bufio.Reader
	app      *app.App
	output   *Output
	jsonMode bool
	yes      bool
	conf     *util.AppConfig
}

// NewHandler creates a new CLI handler
func NewHandler(s Session, a *app.App, conf *util.AppConfig) *Handler {
	return &Handler{
		session: s,
		input:   bufio.NewReader(s),
		app:     a,
		conf:    conf,
	}
}

type command struct {
	run  func(h *Handler, ctx context.Context, args []string) error
	auth bool
}

var commands = map[string]command{
	"post":      {(*Handler).handlePost, true},
	"edit":      {(*Handler).handleEdit, true},
	"delete":    {(*Handler).handleDelete, true},
	"timeline":  {(*Handler).handleTimeline, true},
	"like":      {(*Handler).handleLike, true},
	"unlike":    {(*Handler).handleUnlike, true},
	"comment":   {(*Handler).handleComment, true},
	"comments":  {(*Handler).handleComments, true},
	"follow":    {(*Handler).handleFollow, true},
	"unfollow":  {(*Handler).handleUnfollow, true},
	"cancel":    {(*Handler).handleCancel, true},
	"status":    {(*Handler).handleStatus, true},
	"requests":  {(*Handler).handleRequests, true},
	"accept":    {(*Handler).handleAccept, true},
	"decline":   {(*Handler).handleDecline, true},
	"followers": {(*Handler).handleFollowers, true},
	"following": {(*Handler).handleFollowing, true},
	"profile":   {(*Handler).handleProfile, true},

	"chats":          {(*Handler).handleChats, true},
	"groups":         {(*Handler).handleGroups, true},
	"messages":       {(*Handler).handleMessages, true},
	"send":           {(*Handler).handleSend, true},
	"edit-message":   {(*Handler).handleEditMessage, true},
	"delete-message": {(*Handler).handleDeleteMessage, true},
	"create-group":   {(*Handler).handleCreateGroup, true},
	"update-group":   {(*Handler).handleUpdateGroup, true},
	"delete-group":   {(*Handler).handleDeleteGroup, true},
	"join":           {(*Handler).handleJoin, true},
	"join-requests":  {(*Handler).handleJoinRequests, true},
	"my-requests":    {(*Handler).handleMyJoinRequests, true},
	"accept-join":    {(*Handler).handleAcceptJoin, true},
	"decline-join":   {(*Handler).handleDeclineJoin, true},
	"cancel-join":    {(*Handler).handleCancelJoin, true},
}

// Execute parses and executes a CLI command
func (h *Handler) Execute(ctx context.Context, args []string) error {
	args, h.jsonMode, h.yes = parseGlobalFlags(args)
	h.output = NewOutput(h.session, h.jsonMode)

	if len(args) == 0 {
		return h.showHelp()
	}

	name := strings.ToLower(args[0])
	switch name {
	case "--help", "-h", "help":
		return h.showHelp()
	}

	cmd, ok := commands[name]
	if !ok {
		return h.fail(fmt.Errorf("unknown command: %s", name))
	}
	if cmd.auth && h.app.Session.Actor() == nil {
		return h.fail(fmt.Errorf("%w: set REFTERM_TOKEN and REFTERM_USER_ID", domain.ErrNotAuthenticated))
	}
	return cmd.run(h, ctx, args[1:])
}

// parseGlobalFlags extracts global flags like --json from args
func parseGlobalFlags(args []string) ([]string, bool, bool) {
	jsonMode, yes := false, false
	var filtered []string

	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			jsonMode = true
		case "--yes", "-y":
			yes = true
		default:
			filtered = append(filtered, arg)
		}
	}

	return filtered, jsonMode, yes
}

func (h *Handler) fail(err error) error {
	h.output.Error(err)
	return err
}

func usage(text string) error {
	return fmt.Errorf("usage: %s", text)
}

// confirm asks on the session before a destructive action. --yes skips the
// question; JSON mode never prompts and refuses without it.
func (h *Handler) confirm(action, target string) bool {
	if h.yes {
		return true
	}
	if h.output.IsJSON() {
		return false
	}
	h.output.Print("%s %s? [y/N] ", action, target)
	line, _ := h.input.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// showHelp displays help information
func (h *Handler) showHelp() error {
	if h.output.IsJSON() {
		h.output.JSON(HelpResponse{
			Version:  util.GetVersion(),
			Commands: helpCommands,
			GlobalFlags: []string{
				"--json, -j: output in JSON format",
				"--yes, -y: confirm destructive actions without asking",
			},
		})
		return nil
	}

	h.output.Println("refterm CLI - RefConnect from the terminal")
	h.output.Println("")
	h.output.Println("Usage: ssh -p <port> <server> <command> [options]")
	h.output.Println("")
	h.output.Println("Commands:")
	for _, c := range helpCommands {
		h.output.Print("  %-28s %s\n", c.Usage, c.Description)
	}
	h.output.Println("")
	h.output.Println("Global flags:")
	h.output.Println("  --json, -j                   Output in JSON format")
	h.output.Println("  --yes, -y                    Skip confirmation prompts")
	h.output.Println("")
	h.output.Println("Examples:")
	h.output.Println("  ssh -p 23235 localhost post \"Assessment went well\"")
	h.output.Println("  ssh -p 23235 localhost timeline -n 5 -j")
	h.output.Println("  echo \"Hello\" | ssh -p 23235 localhost post -")
	return nil
}

var helpCommands = []HelpCommand{
	{Name: "post", Description: "Create a new post", Usage: "post <message> | post -", Flags: []string{"-: read message from stdin"}},
	{Name: "edit", Description: "Replace the text of your post", Usage: "edit <postId> <message>"},
	{Name: "delete", Description: "Delete a post", Usage: "delete <postId>"},
	{Name: "timeline", Description: "Show recent posts", Usage: "timeline [-n <count>]", Flags: []string{"-n <count>: limit number of posts (default 20)"}},
	{Name: "like", Description: "Like a post", Usage: "like <postId>"},
	{Name: "unlike", Description: "Remove your like", Usage: "unlike <postId>"},
	{Name: "comment", Description: "Comment on a post", Usage: "comment <postId> <text>"},
	{Name: "comments", Description: "List comments of a post", Usage: "comments <postId>"},
	{Name: "follow", Description: "Follow a user or request to follow", Usage: "follow <userId>"},
	{Name: "unfollow", Description: "Stop following a user", Usage: "unfollow <userId>"},
	{Name: "cancel", Description: "Withdraw a follow request", Usage: "cancel <userId>"},
	{Name: "status", Description: "Show your follow status toward a user", Usage: "status <userId>"},
	{Name: "requests", Description: "List incoming follow requests", Usage: "requests"},
	{Name: "accept", Description: "Accept a follow request", Usage: "accept <userId>"},
	{Name: "decline", Description: "Decline a follow request", Usage: "decline <userId>"},
	{Name: "followers", Description: "List followers", Usage: "followers [userId]"},
	{Name: "following", Description: "List followed users", Usage: "following [userId]"},
	{Name: "profile", Description: "Show a profile", Usage: "profile <userId>"},
	{Name: "chats", Description: "List your chats", Usage: "chats"},
	{Name: "groups", Description: "List or search group chats", Usage: "groups [query]"},
	{Name: "messages", Description: "Show the messages of a chat", Usage: "messages <chatId>"},
	{Name: "send", Description: "Send a message to a chat", Usage: "send <chatId> <message>", Flags: []string{"-: read message from stdin"}},
	{Name: "edit-message", Description: "Replace the text of your message", Usage: "edit-message <messageId> <text>"},
	{Name: "delete-message", Description: "Delete a message", Usage: "delete-message <messageId>"},
	{Name: "create-group", Description: "Create a group chat", Usage: "create-group <name> [userId...]", Flags: []string{"-d <description>: group description"}},
	{Name: "update-group", Description: "Rename a group or change its description", Usage: "update-group <chatId> [name]", Flags: []string{"-d <description>: new description"}},
	{Name: "delete-group", Description: "Delete a group you own", Usage: "delete-group <chatId>"},
	{Name: "join", Description: "Ask to join a group", Usage: "join <chatId>"},
	{Name: "join-requests", Description: "List requests to join your groups", Usage: "join-requests [chatId]"},
	{Name: "my-requests", Description: "List your pending join requests", Usage: "my-requests"},
	{Name: "accept-join", Description: "Accept a join request", Usage: "accept-join <requestId>"},
	{Name: "decline-join", Description: "Decline a join request", Usage: "decline-join <requestId>"},
	{Name: "cancel-join", Description: "Withdraw your join request", Usage: "cancel-join <requestId>"},
	{Name: "help", Description: "Show this help message", Usage: "help"},
}
