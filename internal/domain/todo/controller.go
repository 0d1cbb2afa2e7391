package todo

import (
	"cmp"
	"context"
	"log"
	"slices"
	"strings"
)

type State int

const (
	StateUninitialized State = iota
	StateAwaitingIdentity
	StateMintingToken
	StateReady
	StateListing
	StateMutating
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingIdentity:
		return "awaiting-identity"
	case StateMintingToken:
		return "minting-token"
	case StateReady:
		return "ready"
	case StateListing:
		return "listing"
	case StateMutating:
		return "mutating"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Minter exchanges an identity for a data-access credential.
type Minter interface {
	CreateJWT(ctx context.Context, userID string) (string, error)
}

// ClientFactory builds a repository that presents accessToken on every call.
type ClientFactory func(accessToken string) Repository

// Op is a unit of I/O requested by the controller. The caller runs it off
// the event loop and hands the Result back to Apply.
type Op func(ctx context.Context) Result

// Result is the outcome of an Op.
type Result interface {
	isResult()
}

type MintResult struct {
	Identity string
	Token    string
	Err      error
}

type ListResult struct {
	gen   int
	Todos []Todo
	Err   error
}

type CreateResult struct {
	gen  int
	Todo *Todo
	Err  error
}

type ToggleResult struct {
	gen  int
	ID   int64
	Todo *Todo
	Err  error
}

type DeleteResult struct {
	gen int
	ID  int64
	Err error
}

func (MintResult) isResult()   {}
func (ListResult) isResult()   {}
func (CreateResult) isResult() {}
func (ToggleResult) isResult() {}
func (DeleteResult) isResult() {}

// Controller owns the todo view state for one identity at a time. It is not
// safe for concurrent use: every method, Apply included, must be called from
// the same event loop. Results are applied in arrival order, so overlapping
// mutations resolve as last response wins.
type Controller struct {
	minter    Minter
	newClient ClientFactory

	state     State
	identity  string
	mintedFor string
	client    Repository

	// gen increments whenever the client is replaced or dropped; results
	// carrying an older gen belong to a previous credential and are dropped.
	gen int

	listing  int
	mutating int

	todos   []Todo
	input   string
	errText string
}

func NewController(minter Minter, newClient ClientFactory) *Controller {
	return &Controller{
		minter:    minter,
		newClient: newClient,
		state:     StateUninitialized,
	}
}

// Mount moves the controller to AwaitingIdentity.
func (c *Controller) Mount() {
	if c.state == StateUninitialized {
		c.state = StateAwaitingIdentity
	}
}

// ObserveSession reports the current session. It returns a mint Op the first
// time a given identity is seen and nil otherwise.
func (c *Controller) ObserveSession(identity string, resolving bool) Op {
	c.Mount()

	if resolving {
		return nil
	}
	if identity == "" {
		if c.identity != "" {
			log.Printf("Session ended for %s, dropping data client", c.identity)
			c.reset()
			c.identity = ""
			c.mintedFor = ""
			c.state = StateAwaitingIdentity
		}
		return nil
	}
	if identity == c.mintedFor {
		return nil
	}

	c.reset()
	c.identity = identity
	c.mintedFor = identity
	c.state = StateMintingToken

	minter := c.minter
	return func(ctx context.Context) Result {
		token, err := minter.CreateJWT(ctx, identity)
		return MintResult{Identity: identity, Token: token, Err: err}
	}
}

func (c *Controller) reset() {
	c.gen++
	c.client = nil
	c.todos = nil
	c.errText = ""
	c.listing = 0
	c.mutating = 0
}

// Apply folds a Result into the view state and may return a follow-up Op.
func (c *Controller) Apply(r Result) Op {
	switch r := r.(type) {
	case MintResult:
		return c.applyMint(r)
	case ListResult:
		c.applyList(r)
	case CreateResult:
		c.applyCreate(r)
	case ToggleResult:
		c.applyToggle(r)
	case DeleteResult:
		c.applyDelete(r)
	}
	return nil
}

func (c *Controller) applyMint(r MintResult) Op {
	if r.Identity != c.identity || c.state != StateMintingToken {
		log.Printf("Discarding access token minted for stale identity %s", r.Identity)
		return nil
	}
	if r.Err != nil {
		log.Printf("Error minting access token for %s: %v", r.Identity, r.Err)
		c.state = StateError
		return nil
	}
	if r.Token == "" {
		log.Printf("Error minting access token for %s: response has no token", r.Identity)
		c.state = StateError
		return nil
	}

	c.client = c.newClient(r.Token)
	c.state = StateReady
	return c.List()
}

// List re-reads all rows. It returns nil until a client exists.
func (c *Controller) List() Op {
	if c.client == nil {
		return nil
	}
	c.listing++

	client, gen := c.client, c.gen
	return func(ctx context.Context) Result {
		todos, err := client.List(ctx)
		return ListResult{gen: gen, Todos: todos, Err: err}
	}
}

func (c *Controller) applyList(r ListResult) {
	if r.gen != c.gen {
		return
	}
	c.listing--
	if r.Err != nil {
		log.Printf("Error listing todos: %v", r.Err)
		return
	}
	todos := slices.Clone(r.Todos)
	sortByID(todos)
	c.todos = todos
}

// AddTodo inserts text as a new task. Blank input is ignored.
func (c *Controller) AddTodo(text string) Op {
	task := strings.TrimSpace(text)
	if task == "" || c.client == nil {
		return nil
	}
	c.mutating++

	client, gen := c.client, c.gen
	params := CreateParams{Task: task, UserID: c.identity}
	return func(ctx context.Context) Result {
		t, err := client.Create(ctx, params)
		return CreateResult{gen: gen, Todo: t, Err: err}
	}
}

func (c *Controller) applyCreate(r CreateResult) {
	if r.gen != c.gen {
		return
	}
	c.mutating--
	if r.Err != nil {
		c.errText = r.Err.Error()
		return
	}
	if r.Todo == nil {
		return
	}
	c.todos = append(c.todos, *r.Todo)
	sortByID(c.todos)
	c.input = ""
	c.errText = ""
}

// ToggleTodo asks the datastore to flip the displayed completion flag of id.
// The flag shown afterwards is whatever the datastore echoes back.
func (c *Controller) ToggleTodo(id int64) Op {
	i := c.indexOf(id)
	if i < 0 || c.client == nil {
		return nil
	}
	c.mutating++

	client, gen := c.client, c.gen
	desired := !c.todos[i].IsComplete
	return func(ctx context.Context) Result {
		t, err := client.SetComplete(ctx, id, desired)
		return ToggleResult{gen: gen, ID: id, Todo: t, Err: err}
	}
}

func (c *Controller) applyToggle(r ToggleResult) {
	if r.gen != c.gen {
		return
	}
	c.mutating--
	if r.Err != nil {
		log.Printf("Error toggling todo %d: %v", r.ID, r.Err)
		return
	}
	if r.Todo == nil {
		return
	}
	if i := c.indexOf(r.ID); i >= 0 {
		c.todos[i].IsComplete = r.Todo.IsComplete
	}
}

// DeleteTodo removes id. A delete that matches no visible row is reported
// by the repository as ErrNotFound and leaves the list untouched.
func (c *Controller) DeleteTodo(id int64) Op {
	if c.client == nil {
		return nil
	}
	c.mutating++

	client, gen := c.client, c.gen
	return func(ctx context.Context) Result {
		_, err := client.Delete(ctx, id)
		return DeleteResult{gen: gen, ID: id, Err: err}
	}
}

func (c *Controller) applyDelete(r DeleteResult) {
	if r.gen != c.gen {
		return
	}
	c.mutating--
	if r.Err != nil {
		log.Printf("Error deleting todo %d: %v", r.ID, r.Err)
		return
	}
	c.todos = slices.DeleteFunc(c.todos, func(t Todo) bool { return t.ID == r.ID })
}

// SetInput records the entry field and clears any error banner.
func (c *Controller) SetInput(text string) {
	c.input = text
	c.errText = ""
}

func (c *Controller) State() State {
	if c.state != StateReady {
		return c.state
	}
	switch {
	case c.mutating > 0:
		return StateMutating
	case c.listing > 0:
		return StateListing
	default:
		return StateReady
	}
}

func (c *Controller) Identity() string  { return c.identity }
func (c *Controller) Input() string     { return c.input }
func (c *Controller) ErrorText() string { return c.errText }

// Todos returns a copy of the rows in ascending id order.
func (c *Controller) Todos() []Todo {
	return slices.Clone(c.todos)
}

func (c *Controller) indexOf(id int64) int {
	return slices.IndexFunc(c.todos, func(t Todo) bool { return t.ID == id })
}

func sortByID(todos []Todo) {
	slices.SortStableFunc(todos, func(a, b Todo) int { return cmp.Compare(a.ID, b.ID) })
}
