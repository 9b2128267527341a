// Package agent turns free-form user input into tool calls.
//
// The translation itself happens outside this process. An Agent receives a
// Request describing the input, the catalog and the available tools, and
// answers with the calls to make plus an optional reply for the user.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
)

// ErrDisabled is returned when no translator is configured.
var ErrDisabled = errors.New("natural-language input is not configured")

// Instructions is sent with every request as the translator's standing prompt.
const Instructions = `You are a spreadsheet assistant. You help users create and manage tables through natural language commands.

Answer with tool calls that perform the request. Do not describe what you would do; call the tools.

Interpret vague commands using the current tables and their columns:
- "make a new table for tracking expenses" -> create_table with name "expenses" and columns "description, amount:real, category, date"
- "add coffee 5 dollars" -> add_row with data "description:coffee, amount:5"
- "change row 2 price to 10" -> edit_cell with row_id 2, column "price", value "10"
- "show me the data" -> display
- "remove the notes column" -> delete_column with column_name "notes"
- "chart my spending by category" -> plot_data with x_column "category" and y_column "amount"

Operations without a table argument apply to the active table. Call display after modifications so the user sees the result. If no table exists yet, suggest creating one.`

// Request is what an Agent is asked to translate.
type Request struct {
	Instructions string              `json:"instructions"`
	Input        string              `json:"input"`
	Active       string              `json:"active,omitempty"`
	Tables       []*tablestore.Table `json:"tables"`
	Tools        []*tools.Tool       `json:"tools"`
}

// Response is an Agent's answer.
type Response struct {
	Calls []tools.Call `json:"calls"`
	Reply string       `json:"reply,omitempty"`
}

// Agent translates natural-language input into tool calls.
type Agent interface {
	Translate(ctx context.Context, req *Request) (*Response, error)
}

// Outcome is the result of running one input through an Agent.
type Outcome struct {
	Reply   string          `json:"reply,omitempty"`
	Results []*tools.Result `json:"results"`
}

// Failed counts the results that report an error.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if r.IsError {
			n++
		}
	}
	return n
}

// NewRequest builds a request for input from the dispatcher's session.
func NewRequest(ctx context.Context, d *tools.Dispatcher, input string) (*Request, error) {
	tables, err := d.Session().Tables(ctx)
	if err != nil {
		return nil, err
	}
	return &Request{
		Instructions: Instructions,
		Input:        input,
		Active:       d.Session().Active(),
		Tables:       tables,
		Tools:        tools.List(),
	}, nil
}

// Run translates input and applies every returned call in order. A failing
// call does not stop the ones after it; each result is reported.
func Run(ctx context.Context, a Agent, d *tools.Dispatcher, input string, logger *slog.Logger) (*Outcome, error) {
	if a == nil {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return &Outcome{}, nil
	}

	req, err := NewRequest(ctx, d, input)
	if err != nil {
		return nil, err
	}
	resp, err := a.Translate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to translate input: %w", err)
	}
	logger.Debug("agent response", "calls", len(resp.Calls))

	out := &Outcome{Reply: strings.TrimSpace(resp.Reply)}
	for _, c := range resp.Calls {
		res, err := d.Apply(ctx, c)
		if errors.Is(err, tools.ErrUnknownTool) {
			res = &tools.Result{Tool: c.Name, Text: "Error: " + err.Error(), IsError: true, Kind: tools.KindUnknownTool}
		} else if err != nil {
			return out, err
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
