package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/gamehub/internal/api/response"
	"github.com/mcoot/gamehub/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintResponse outputs a hub response to the given action
func (o *Output) PrintResponse(action string, resp *protocol.Response) {
	if o.format == "json" {
		o.printJSON(resp)
		return
	}
	if resp.Status != protocol.StatusOK {
		fmt.Fprintf(o.w, "Error: %s (%s): %s\n", resp.ErrorKind, resp.ErrorClass, resp.Message)
		return
	}
	o.printText(decodeData(action, resp))
}

// decodeData turns response data into the view type for the action, or
// leaves it as raw JSON
func decodeData(action string, resp *protocol.Response) any {
	var target any
	switch action {
	case protocol.ActionLogin, protocol.ActionWhoAmI:
		target = &protocol.Session{}
	case protocol.ActionRegister:
		target = &protocol.Account{}
	case protocol.ActionCreateRoom, protocol.ActionGetRoom, protocol.ActionJoinRoom,
		protocol.ActionSetReady, protocol.ActionStartGame, protocol.ActionEndGame:
		target = &protocol.Room{}
	case protocol.ActionListRooms:
		target = &[]protocol.Room{}
	case protocol.ActionPublishGame, protocol.ActionUpdateGame:
		target = &protocol.Game{}
	case protocol.ActionListGames:
		target = &[]protocol.Game{}
	case protocol.ActionGetGame:
		target = &protocol.GameDetails{}
	case protocol.ActionDownloadGame:
		target = &protocol.Download{}
	case protocol.ActionListReviews:
		target = &[]protocol.Review{}
	default:
		return resp.Data
	}
	if err := resp.Decode(target); err != nil {
		return resp.Data
	}
	return target
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *protocol.Session:
		o.printSession(v)
	case *protocol.Account:
		fmt.Fprintf(o.w, "Account: %s (%s)\n", v.Name, v.Role)
	case *protocol.Room:
		o.printRoom(v)
	case *[]protocol.Room:
		o.printRooms(*v)
	case *protocol.Game:
		o.printGame(*v)
	case *[]protocol.Game:
		o.printGames(*v)
	case *protocol.GameDetails:
		o.printGameDetails(v)
	case *protocol.Download:
		fmt.Fprintf(o.w, "Downloaded %s v%s\n", v.GameID, v.Version)
		fmt.Fprintf(o.w, "Files: %s (entry %s)\n", v.FilesRoot, v.Entry)
	case *[]protocol.Review:
		o.printReviews(*v)
	case response.Health:
		o.printHealth(v)
	case response.Ports:
		o.printPorts(v)
	case json.RawMessage:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "OK")
			return
		}
		o.printJSON(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printSession(s *protocol.Session) {
	fmt.Fprintf(o.w, "Account: %s (%s)\n", s.Account, s.Role)
	if s.Token != "" {
		fmt.Fprintf(o.w, "Token: %s\n", s.Token)
	}
	fmt.Fprintf(o.w, "Expires: %s\n", s.ExpiresAt.Format("2006-01-02 15:04:05"))
}

func (o *Output) printRoom(r *protocol.Room) {
	fmt.Fprintf(o.w, "Room: %s (%s)\n", r.ID, r.Name)
	fmt.Fprintf(o.w, "Game: %s v%s\n", r.GameID, r.GameVersion)
	fmt.Fprintf(o.w, "State: %s\n", r.State)
	if r.Port != nil {
		fmt.Fprintf(o.w, "Game Server Port: %d\n", *r.Port)
	}
	fmt.Fprintf(o.w, "Members (%d/%d):\n", len(r.Members), r.Capacity)
	for _, m := range r.Members {
		var tags []string
		if m == r.Host {
			tags = append(tags, "host")
		}
		if r.Ready[m] {
			tags = append(tags, "ready")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintf(o.w, "  - %s%s\n", m, suffix)
	}
}

func (o *Output) printRooms(rooms []protocol.Room) {
	if len(rooms) == 0 {
		fmt.Fprintln(o.w, "No rooms")
		return
	}
	for _, r := range rooms {
		fmt.Fprintf(o.w, "%s  %-11s %d/%d  %s (host %s)\n", r.ID, r.State, len(r.Members), r.Capacity, r.Name, r.Host)
	}
}

func (o *Output) printGame(g protocol.Game) {
	fmt.Fprintf(o.w, "Game: %s v%s (%s)\n", g.Name, g.Version, g.ID)
	fmt.Fprintf(o.w, "Owner: %s\n", g.Owner)
	if g.Description != "" {
		fmt.Fprintf(o.w, "Description: %s\n", g.Description)
	}
	fmt.Fprintf(o.w, "Downloads: %d\n", g.DownloadCount)
	if g.ReviewCount > 0 {
		fmt.Fprintf(o.w, "Rating: %.1f (%d reviews)\n", g.AverageRating, g.ReviewCount)
	}
	if g.Delisted {
		fmt.Fprintln(o.w, "Delisted")
	}
}

func (o *Output) printGames(games []protocol.Game) {
	if len(games) == 0 {
		fmt.Fprintln(o.w, "No games")
		return
	}
	for _, g := range games {
		fmt.Fprintf(o.w, "%s  %s v%s by %s  %.1f★ (%d)\n", g.ID, g.Name, g.Version, g.Owner, g.AverageRating, g.ReviewCount)
	}
}

func (o *Output) printGameDetails(d *protocol.GameDetails) {
	o.printGame(d.Game)
	if len(d.Reviews) > 0 {
		fmt.Fprintln(o.w, "\nReviews:")
		o.printReviews(d.Reviews)
	}
}

func (o *Output) printReviews(reviews []protocol.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(o.w, "No reviews")
		return
	}
	for _, r := range reviews {
		fmt.Fprintf(o.w, "  %s: %d/5", r.Reviewer, r.Rating)
		if r.Comment != "" {
			fmt.Fprintf(o.w, " - %s", r.Comment)
		}
		fmt.Fprintln(o.w)
	}
}

func (o *Output) printHealth(h response.Health) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Uptime: %ds\n", h.UptimeSeconds)
	fmt.Fprintf(o.w, "Sessions: %d\n", h.Sessions)
	fmt.Fprintf(o.w, "Rooms: %d (%d playing)\n", h.Rooms, h.PlayingRooms)
	fmt.Fprintf(o.w, "Free Ports: %d\n", h.PortsAvailable)
}

func (o *Output) printPorts(p response.Ports) {
	fmt.Fprintf(o.w, "Pool: %d-%d (%d free)\n", p.Start, p.Start+p.Size-1, p.Free)
	for _, h := range p.Held {
		fmt.Fprintf(o.w, "  %d  %s\n", h.Port, h.Holder)
	}
}
