package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/client"
	"github.com/arnavshah/attendance-api-go/pkg/dialog"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/geolocation"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in, run: attendctl login")
)

type commandLine struct {
	client       *client.Client
	sessionPath  string
	positionAge  time.Duration
	out          io.Writer
	in           *bufio.Reader
	readPassword func(fd int) ([]byte, error)
}

func newCommandLine(c *client.Client, sessionPath string, positionAge time.Duration) *commandLine {
	return &commandLine{
		client:       c,
		sessionPath:  sessionPath,
		positionAge:  positionAge,
		out:          os.Stdout,
		in:           bufio.NewReader(os.Stdin),
		readPassword: readPasswordFunc,
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -role admin|area|worker -username USERNAME - log in, the password is prompted next")
	fmt.Fprintln(cli.out, "  logout                                            - forget the stored session")
	fmt.Fprintln(cli.out, "  whoami                                            - show the logged in account")
	fmt.Fprintln(cli.out, "  zones                                             - list zones")
	fmt.Fprintln(cli.out, "  draw -name NAME -kind circle|rectangle -from LAT,LNG -to LAT,LNG [-id ID]")
	fmt.Fprintln(cli.out, "                                                    - create or redraw a zone")
	fmt.Fprintln(cli.out, "  assignments                                       - list visible assignments")
	fmt.Fprintln(cli.out, "  eligibility -assignment ID [-lat LAT -lng LNG]    - ask which marks are allowed")
	fmt.Fprintln(cli.out, "  mark -assignment ID -kind entry|exit -lat LAT -lng LNG [-yes]")
	fmt.Fprintln(cli.out, "                                                    - record an entry or exit")
	fmt.Fprintln(cli.out, "  watch -assignment ID [-lat LAT -lng LNG] [-interval 5s] [-count N]")
	fmt.Fprintln(cli.out, "                                                    - re-check eligibility for each position, read from stdin without -lat/-lng")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "login":
		return cli.login(ctx, args[2:])
	case "logout":
		cli.client.Logout()
		if err := os.Remove(cli.sessionPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove session")
		}
		fmt.Fprintln(cli.out, "logged out")
		return nil
	}

	if err := cli.restoreSession(); err != nil {
		return err
	}
	var err error
	switch args[1] {
	case "whoami":
		err = cli.whoami(ctx)
	case "zones":
		err = cli.zones(ctx)
	case "draw":
		err = cli.draw(ctx, args[2:])
	case "assignments":
		err = cli.assignments(ctx)
	case "eligibility":
		err = cli.eligibility(ctx, args[2:])
	case "mark":
		err = cli.mark(ctx, args[2:])
	case "watch":
		err = cli.watch(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
	if errors.Is(err, client.ErrUnauthorized) {
		_ = os.Remove(cli.sessionPath)
	}
	return err
}

type storedSession struct {
	Token string       `json:"token"`
	Role  session.Role `json:"role"`
	User  session.User `json:"user"`
}

func (cli *commandLine) saveSession() error {
	s := cli.client.Session
	data, err := json.Marshal(storedSession{Token: s.Token(), Role: s.Role(), User: s.User()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cli.sessionPath), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	return errors.Wrap(os.WriteFile(cli.sessionPath, data, 0o600), "write session")
}

func (cli *commandLine) restoreSession() error {
	data, err := os.ReadFile(cli.sessionPath)
	if os.IsNotExist(err) {
		return errNotLoggedIn
	}
	if err != nil {
		return errors.Wrap(err, "read session")
	}
	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil || s.Token == "" {
		return errNotLoggedIn
	}
	cli.client.Session.Set(s.Token, s.Role, s.User)
	return nil
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("login", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	role := cmd.String("role", string(session.RoleWorker), "admin, area or worker")
	username := cmd.String("username", "", "The account's username. The password will be prompted next.")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		cmd.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := cli.readPassword(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return errHelp
	}

	resp, err := cli.client.Login(ctx, session.Role(*role), *username, string(pwd))
	if err != nil {
		return err
	}
	if err := cli.saveSession(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged in as %s (%s)\n", resp.User.Username, resp.Role)
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	u, err := cli.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s) id=%d", u.Username, cli.client.Session.Role(), u.ID)
	if u.FullName != "" {
		fmt.Fprintf(cli.out, " %s", u.FullName)
	}
	fmt.Fprintln(cli.out)
	return nil
}

func describeShape(z geofence.Zone) string {
	mid, _ := z.Midpoint()
	if z.Kind == geofence.KindCircle {
		return fmt.Sprintf("circle r=%.0fm at %.6f,%.6f", z.Radius, mid.Lat, mid.Lng)
	}
	return fmt.Sprintf("rectangle %.6f,%.6f to %.6f,%.6f", z.Start.Lat, z.Start.Lng, z.End.Lat, z.End.Lng)
}

func (cli *commandLine) zones(ctx context.Context) error {
	zones, err := cli.client.Zones(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSHAPE")
	for _, z := range zones {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", z.ID, z.Name, describeShape(z.Shape))
	}
	return tw.Flush()
}

func parsePoint(s string) (geofence.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geofence.Point{}, errors.Errorf("point %q must be LAT,LNG", s)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geofence.Point{}, errors.Errorf("point %q must be LAT,LNG", s)
	}
	return geofence.Point{Lat: lat, Lng: lng}, nil
}

// draw replays the map interaction: click the anchor, move to the second
// point, click again to freeze the shape
func (cli *commandLine) draw(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("draw", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	id := cmd.Uint("id", 0, "redraw an existing zone")
	name := cmd.String("name", "", "zone name")
	desc := cmd.String("description", "", "zone description")
	kind := cmd.String("kind", string(geofence.KindCircle), "circle or rectangle")
	from := cmd.String("from", "", "first click, LAT,LNG (circle center or rectangle corner)")
	to := cmd.String("to", "", "second click, LAT,LNG (circle edge or opposite corner)")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	var drawer *geofence.Drawer
	if *id != 0 {
		z, err := cli.client.Zone(ctx, uint(*id))
		if err != nil {
			return err
		}
		drawer = geofence.EditDrawer(z.Shape)
		if *name == "" {
			*name = z.Name
		}
		if *desc == "" {
			*desc = z.Description
		}
	} else {
		drawer = geofence.NewDrawer(geofence.Kind(*kind))
	}

	if *from != "" {
		p1, err := parsePoint(*from)
		if err != nil {
			return err
		}
		p2 := p1
		if *to != "" {
			if p2, err = parsePoint(*to); err != nil {
				return err
			}
		}
		drawer.SetKind(geofence.Kind(*kind))
		drawer.Click(p1)
		drawer.Move(p2)
		drawer.Click(p2)
	}
	shape, drawn := drawer.Shape()
	if !drawn || !drawer.IsComplete() {
		cmd.Usage()
		return errHelp
	}
	if err := shape.Validate(); err != nil {
		return err
	}

	in := models.ZoneInput{Name: *name, Description: *desc, Shape: shape}
	var z models.ZoneResponse
	var err error
	if *id != 0 {
		z, err = cli.client.UpdateZone(ctx, uint(*id), in)
	} else {
		z, err = cli.client.CreateZone(ctx, in)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "zone %d %s: %s\n", z.ID, z.Name, describeShape(z.Shape))
	return nil
}

func (cli *commandLine) assignments(ctx context.Context) error {
	list, err := cli.client.Assignments(ctx, client.AssignmentFilter{})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKER\tZONE\tDAYS\tSHIFT")
	for _, a := range list {
		worker, zone := strconv.FormatUint(uint64(a.WorkerID), 10), strconv.FormatUint(uint64(a.ZoneID), 10)
		if a.Worker != nil {
			worker = a.Worker.Username
		}
		if a.Zone != nil {
			zone = a.Zone.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s-%s\n", a.ID, worker, zone, a.Days, a.EntryTime, a.ExitTime)
	}
	return tw.Flush()
}

// positionFlags registers -lat and -lng; both must be given for a position
func positionFlags(cmd *flag.FlagSet) func() (*geofence.Point, error) {
	lat := cmd.String("lat", "", "latitude")
	lng := cmd.String("lng", "", "longitude")
	return func() (*geofence.Point, error) {
		if *lat == "" && *lng == "" {
			return nil, nil
		}
		p, err := parsePoint(*lat + "," + *lng)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (cli *commandLine) eligibility(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("eligibility", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	id := cmd.Uint("assignment", 0, "assignment id")
	position := positionFlags(cmd)
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		cmd.Usage()
		return errHelp
	}
	pos, err := position()
	if err != nil {
		return err
	}

	var lat, lng *float64
	if pos != nil {
		lat, lng = &pos.Lat, &pos.Lng
	}
	e, err := cli.client.Eligibility(ctx, uint(*id), lat, lng)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "inside zone: %s\n", yesNo(e.Inside))
	fmt.Fprintf(cli.out, "entry: %s", yesNo(e.Entry))
	if e.EntryReason != "" {
		fmt.Fprintf(cli.out, " (%s)", e.EntryReason)
	}
	fmt.Fprintf(cli.out, "\nexit: %s", yesNo(e.Exit))
	if e.ExitReason != "" {
		fmt.Fprintf(cli.out, " (%s)", e.ExitReason)
	}
	fmt.Fprintf(cli.out, "\nscheduled today: %s\n", yesNo(e.ScheduledToday))
	return nil
}

// newMarker loads the worker's marks into a marker that counts days in the
// backend's timezone
func (cli *commandLine) newMarker(ctx context.Context, locator attendance.Locator) (*attendance.Marker, error) {
	loc, err := cli.client.ServerLocation(ctx)
	if err != nil {
		return nil, err
	}
	marker := attendance.NewMarker(cli.client, locator)
	marker.SetLocation(loc)
	if err := marker.Load(ctx, cli.client.Session.User().ID); err != nil {
		return nil, err
	}
	return marker, nil
}

// lineSource reads one LAT,LNG position per line. Blank lines are skipped;
// the end of input stops the watch.
func lineSource(in *bufio.Reader, stop context.CancelFunc) geolocation.Source {
	return geolocation.SourceFunc(func(ctx context.Context) (geolocation.Fix, error) {
		for {
			line, err := in.ReadString('\n')
			line = strings.TrimSpace(line)
			if line != "" {
				p, perr := parsePoint(line)
				if perr != nil {
					return geolocation.Fix{}, perr
				}
				return geolocation.Fix{Position: p}, nil
			}
			if err != nil {
				stop()
				return geolocation.Fix{}, geolocation.ErrUnavailable
			}
		}
	})
}

// watch keeps evaluating an assignment as new positions arrive, until
// -count fixes were shown, the input ends or the command is interrupted
func (cli *commandLine) watch(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("watch", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	id := cmd.Uint("assignment", 0, "assignment id")
	interval := cmd.Duration("interval", 5*time.Second, "time between position reads")
	count := cmd.Int("count", 0, "stop after this many positions, 0 for no limit")
	position := positionFlags(cmd)
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		cmd.Usage()
		return errHelp
	}
	pos, err := position()
	if err != nil {
		return err
	}

	resp, err := cli.client.Assignment(ctx, uint(*id))
	if err != nil {
		return err
	}
	a, err := resp.ToAttendance()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	src := lineSource(cli.in, cancel)
	if pos != nil {
		src = geolocation.StaticSource{Fix: geolocation.Fix{Position: *pos}}
	}
	tracker := geolocation.NewTracker(src, cli.positionAge)
	marker, err := cli.newMarker(ctx, tracker)
	if err != nil {
		return err
	}

	sub := tracker.Watch(ctx, *interval)
	defer sub.Cancel()

	seen := 0
	for fix := range sub.C {
		p := fix.Position
		e := marker.Eligibility(&p, a)
		fmt.Fprintf(cli.out, "%s inside: %s entry: %s exit: %s\n", p, yesNo(e.Inside), yesNo(e.Entry), yesNo(e.Exit))
		seen++
		if *count > 0 && seen >= *count {
			break
		}
	}
	if err := sub.Err(); err != nil && !errors.Is(err, geolocation.ErrUnavailable) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveDialogs is the single consumer of q. Alerts are printed; confirms
// are answered from stdin unless autoYes is set.
func (cli *commandLine) serveDialogs(ctx context.Context, q *dialog.Queue, autoYes bool) {
	for {
		p, err := q.Next(ctx)
		if err != nil {
			return
		}
		fmt.Fprintf(cli.out, "[%s] %s\n", p.Title, p.Message)
		answer := true
		if p.Kind == dialog.KindConfirm && !autoYes {
			fmt.Fprintf(cli.out, "%s/%s? ", p.ConfirmText, p.CancelText)
			line, _ := cli.in.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
			answer = line == "y" || line == "yes" || line == strings.ToLower(p.ConfirmText)
		}
		_ = q.Resolve(p.ID, answer)
	}
}

func (cli *commandLine) mark(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("mark", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	id := cmd.Uint("assignment", 0, "assignment id")
	kind := cmd.String("kind", string(attendance.KindEntry), "entry or exit")
	yes := cmd.Bool("yes", false, "do not ask for confirmation")
	position := positionFlags(cmd)
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		cmd.Usage()
		return errHelp
	}
	pos, err := position()
	if err != nil {
		return err
	}

	resp, err := cli.client.Assignment(ctx, uint(*id))
	if err != nil {
		return err
	}
	a, err := resp.ToAttendance()
	if err != nil {
		return err
	}

	src := geolocation.Source(geolocation.StaticSource{Err: geolocation.ErrUnavailable})
	if pos != nil {
		src = geolocation.StaticSource{Fix: geolocation.Fix{Position: *pos}}
	}
	marker, err := cli.newMarker(ctx, geolocation.NewTracker(src, cli.positionAge))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	q := dialog.NewQueue()
	go cli.serveDialogs(ctx, q, *yes)

	zone := fmt.Sprintf("zone %d", a.ZoneID)
	if resp.Zone != nil {
		zone = resp.Zone.Name
	}
	k := attendance.Kind(*kind)
	if err := marker.Eligibility(pos, a).Check(k); err != nil {
		_ = q.Alert(ctx, err.Error(), dialog.WithTitle("Cannot mark"))
		return err
	}
	confirmed, err := q.Confirm(ctx, fmt.Sprintf("Mark %s at %s?", k, zone))
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Fprintln(cli.out, "cancelled")
		return nil
	}

	m, err := marker.Mark(ctx, a, k)
	if err != nil {
		_ = q.Alert(ctx, err.Error(), dialog.WithTitle("Mark failed"))
		return err
	}
	return q.Alert(ctx, fmt.Sprintf("%s recorded at %s", m.Kind, m.At.Local().Format("15:04:05")), dialog.WithTitle("Done"))
}
