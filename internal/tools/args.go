package tools

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
)

// ErrInvalidArguments marks arguments that do not fit a tool's parameters.
var ErrInvalidArguments = errors.New("invalid arguments")

type createTableArgs struct {
	Name    string `mapstructure:"name"`
	Columns any    `mapstructure:"columns"`
}

type nameArgs struct {
	Name string `mapstructure:"name"`
}

type tableArgs struct {
	Table string `mapstructure:"table"`
}

type addColumnArgs struct {
	Table        string `mapstructure:"table"`
	ColumnName   string `mapstructure:"column_name"`
	Type         string `mapstructure:"type"`
	DefaultValue any    `mapstructure:"default_value"`
}

type deleteColumnArgs struct {
	Table      string `mapstructure:"table"`
	ColumnName string `mapstructure:"column_name"`
}

type addRowArgs struct {
	Table string `mapstructure:"table"`
	Data  any    `mapstructure:"data"`
}

type editCellArgs struct {
	Table  string `mapstructure:"table"`
	RowID  int64  `mapstructure:"row_id"`
	Column string `mapstructure:"column"`
	Value  any    `mapstructure:"value"`
}

// rowArgs addresses one row; delete_row and get_row share it.
type rowArgs struct {
	Table string `mapstructure:"table"`
	RowID int64  `mapstructure:"row_id"`
}

type displayArgs struct {
	Table string         `mapstructure:"table"`
	Where map[string]any `mapstructure:"where"`
}

type exportArgs struct {
	Table        string `mapstructure:"table"`
	Filename     string `mapstructure:"filename"`
	IncludeRowID bool   `mapstructure:"include_row_id"`
}

type renameArgs struct {
	Table   string `mapstructure:"table"`
	NewName string `mapstructure:"new_name"`
}

type importArgs struct {
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
}

type plotArgs struct {
	Table      string `mapstructure:"table"`
	PlotType   string `mapstructure:"plot_type"`
	XColumn    string `mapstructure:"x_column"`
	YColumn    string `mapstructure:"y_column"`
	Title      string `mapstructure:"title"`
	OutputFile string `mapstructure:"output_file"`
}

// decodeArgs decodes raw JSON-ish arguments into out. Numbers given as
// strings and similar loose input are accepted; unknown keys are not.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		DecodeHook:       wholeNumberHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// wholeNumberHook rejects fractional numbers bound for integer fields, so
// a row_id of 1.7 fails instead of addressing row 1.
func wholeNumberHook(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected a whole number, got %v", data)
	}
	return data, nil
}

// requireArg fails when a required string argument is blank.
func requireArg(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArguments, name)
	}
	return nil
}

// ParseColumns accepts the column shapes models produce: a comma-separated
// string, a list of "name[:type]" strings, or a list of {"name","type"}
// objects.
func ParseColumns(v any) ([]tablestore.ColumnSpec, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		var specs []tablestore.ColumnSpec
		for _, part := range strings.Split(x, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			specs = append(specs, tablestore.ParseColumnSpec(part))
		}
		return specs, nil
	case []string:
		specs := make([]tablestore.ColumnSpec, 0, len(x))
		for _, s := range x {
			specs = append(specs, tablestore.ParseColumnSpec(s))
		}
		return specs, nil
	case []tablestore.ColumnSpec:
		return x, nil
	case []any:
		specs := make([]tablestore.ColumnSpec, 0, len(x))
		for i, item := range x {
			switch c := item.(type) {
			case string:
				specs = append(specs, tablestore.ParseColumnSpec(c))
			case map[string]any:
				var raw struct {
					Name string `mapstructure:"name"`
					Type string `mapstructure:"type"`
				}
				if err := mapstructure.WeakDecode(c, &raw); err != nil {
					return nil, fmt.Errorf("%w: column %d: %v", ErrInvalidArguments, i+1, err)
				}
				specs = append(specs, tablestore.ColumnSpec{
					Name: strings.TrimSpace(raw.Name),
					Type: tablestore.ParseColumnType(raw.Type),
				})
			default:
				return nil, fmt.Errorf("%w: column %d has unsupported type %T", ErrInvalidArguments, i+1, item)
			}
		}
		return specs, nil
	default:
		return nil, fmt.Errorf("%w: columns has unsupported type %T", ErrInvalidArguments, v)
	}
}

// ParseCells accepts row data as an object or as a "column:value" string.
func ParseCells(v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return x, nil
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = val
		}
		return out, nil
	case string:
		cells := ParseCellPairs(x)
		if len(cells) == 0 && strings.TrimSpace(x) != "" {
			return nil, fmt.Errorf("%w: use the form 'column:value, column:value'", ErrInvalidArguments)
		}
		return cells, nil
	default:
		return nil, fmt.Errorf("%w: data has unsupported type %T", ErrInvalidArguments, v)
	}
}

// ParseCellPairs parses "column:value, column:value". Pairs without a
// colon are skipped; the value keeps everything after the first colon.
func ParseCellPairs(s string) map[string]any {
	cells := map[string]any{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cells[key] = strings.TrimSpace(value)
	}
	return cells
}
