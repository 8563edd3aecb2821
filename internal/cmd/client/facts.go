package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	transports "github.com/otbe/factcast/internal/cmd/client/transports"
	"github.com/otbe/factcast/internal/fact"
	factsvc "github.com/otbe/factcast/internal/services/facts"
)

// NewPublishCommand constructs the `publish` command.
func NewPublishCommand() *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one fact, or a batch from --batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, _ := cmd.Flags().GetString("batch")
			var facts []fact.Fact
			if batch != "" {
				b, err := readInput(cmd, batch)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &facts); err != nil {
					return fmt.Errorf("invalid --batch: %w", err)
				}
			} else {
				f, err := factFromFlags(cmd)
				if err != nil {
					return err
				}
				facts = []fact.Fact{f}
			}

			t := getTransport()
			if err := transports.CheckProtocol(cmd.Context(), t, factsvc.CurrentProtocol.Major); err != nil {
				return err
			}
			out, err := t.Publish(cmd.Context(), facts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, f := range out {
				_ = enc.Encode(map[string]any{"id": f.ID.String(), "ns": f.Namespace, "serial": f.Serial})
			}
			return nil
		},
	}
	publishCmd.Flags().String("ns", "", "Namespace")
	publishCmd.Flags().String("type", "", "Fact type")
	publishCmd.Flags().String("id", "", "Fact id (assigned by the server when empty)")
	publishCmd.Flags().StringSlice("agg-id", nil, "Aggregate id (repeatable)")
	publishCmd.Flags().StringArray("meta", nil, "Meta entry key=value (repeatable)")
	publishCmd.Flags().String("data", "", "Payload")
	publishCmd.Flags().String("data-file", "", "Read the payload from a file (- for stdin)")
	publishCmd.Flags().String("batch", "", "JSON array of facts to publish atomically (- for stdin)")
	return publishCmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func factFromFlags(cmd *cobra.Command) (fact.Fact, error) {
	ns, _ := cmd.Flags().GetString("ns")
	typ, _ := cmd.Flags().GetString("type")
	idStr, _ := cmd.Flags().GetString("id")
	aggs, _ := cmd.Flags().GetStringSlice("agg-id")
	metaPairs, _ := cmd.Flags().GetStringArray("meta")
	data, _ := cmd.Flags().GetString("data")
	dataFile, _ := cmd.Flags().GetString("data-file")

	if ns == "" {
		return fact.Fact{}, fmt.Errorf("--ns is required")
	}
	f := fact.Fact{Header: fact.Header{Namespace: ns, Type: typ}, Payload: []byte(data)}
	if idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return fact.Fact{}, fmt.Errorf("invalid --id: %w", err)
		}
		f.ID = id
	}
	for _, a := range aggs {
		id, err := uuid.Parse(a)
		if err != nil {
			return fact.Fact{}, fmt.Errorf("invalid --agg-id %q: %w", a, err)
		}
		f.AggIDs = append(f.AggIDs, id)
	}
	meta, err := parsePairs(metaPairs)
	if err != nil {
		return fact.Fact{}, err
	}
	f.Meta = meta
	if dataFile != "" {
		b, err := readInput(cmd, dataFile)
		if err != nil {
			return fact.Fact{}, err
		}
		f.Payload = b
	}
	return f, nil
}

// NewSubscribeCommand constructs the `subscribe` command.
func NewSubscribeCommand() *cobra.Command {
	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print matching facts as JSON lines; --follow keeps tailing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			t := getTransport()
			if err := transports.CheckProtocol(cmd.Context(), t, factsvc.CurrentProtocol.Major); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			seen := 0
			return t.Subscribe(cmd.Context(), req, func(n factcastv1.Notification) error {
				switch n.Type {
				case factcastv1.TypeFact:
					_ = enc.Encode(factJSON(*n.Fact))
				case factcastv1.TypeID:
					_ = enc.Encode(map[string]any{"id": n.ID.String(), "serial": n.Serial})
				case factcastv1.TypeCatchup:
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "-- caught up")
					return nil
				case factcastv1.TypeError:
					return fmt.Errorf("subscription failed: %s", n.Message)
				default:
					return nil
				}
				seen++
				if limit > 0 && seen >= limit {
					return transports.ErrStop
				}
				return nil
			})
		},
	}
	subscribeCmd.Flags().StringSlice("ns", nil, "Namespace (repeatable; each becomes one spec)")
	subscribeCmd.Flags().String("type", "", "Fact type")
	subscribeCmd.Flags().String("agg-id", "", "Aggregate id")
	subscribeCmd.Flags().StringArray("meta", nil, "Required meta entry key=value (repeatable)")
	subscribeCmd.Flags().String("filter", "", "CEL filter over the header")
	subscribeCmd.Flags().Bool("follow", false, "Keep delivering new facts after catchup")
	subscribeCmd.Flags().Bool("ids", false, "Deliver ids only")
	subscribeCmd.Flags().String("since", "", "Start after the fact with this id")
	subscribeCmd.Flags().Uint64("since-serial", 0, "Start after this serial")
	subscribeCmd.Flags().Duration("max-latency", 0, "Upper bound for delivery latency while following")
	subscribeCmd.Flags().Int("limit", 0, "Stop after N facts (0 = unlimited)")
	return subscribeCmd
}

func requestFromFlags(cmd *cobra.Command) (fact.Request, error) {
	namespaces, _ := cmd.Flags().GetStringSlice("ns")
	typ, _ := cmd.Flags().GetString("type")
	aggStr, _ := cmd.Flags().GetString("agg-id")
	metaPairs, _ := cmd.Flags().GetStringArray("meta")
	filter, _ := cmd.Flags().GetString("filter")
	follow, _ := cmd.Flags().GetBool("follow")
	ids, _ := cmd.Flags().GetBool("ids")
	since, _ := cmd.Flags().GetString("since")
	sinceSerial, _ := cmd.Flags().GetUint64("since-serial")
	maxLatency, _ := cmd.Flags().GetDuration("max-latency")

	if len(namespaces) == 0 {
		return fact.Request{}, fmt.Errorf("--ns is required")
	}
	if since != "" && sinceSerial > 0 {
		return fact.Request{}, fmt.Errorf("--since and --since-serial are mutually exclusive")
	}
	meta, err := parsePairs(metaPairs)
	if err != nil {
		return fact.Request{}, err
	}
	var agg uuid.UUID
	if aggStr != "" {
		if agg, err = uuid.Parse(aggStr); err != nil {
			return fact.Request{}, fmt.Errorf("invalid --agg-id: %w", err)
		}
	}
	specs := make([]fact.Spec, len(namespaces))
	for i, ns := range namespaces {
		specs[i] = fact.Spec{Namespace: ns, Type: typ, AggID: agg, Meta: meta, Filter: filter}
	}

	var cb *fact.CursorBuilder
	if ids {
		cb = fact.Catchup(specs...).AsIDs()
	} else {
		cb = fact.Catchup(specs...).AsFacts()
	}
	cb.Continuous(follow).MaxLatency(maxLatency)
	switch {
	case since != "":
		id, err := uuid.Parse(since)
		if err != nil {
			return fact.Request{}, fmt.Errorf("invalid --since: %w", err)
		}
		return cb.Since(id)
	default:
		return cb.SinceSerial(sinceSerial)
	}
}

// NewFactCommand constructs the `fact` command group for point lookups.
func NewFactCommand() *cobra.Command {
	factCmd := &cobra.Command{Use: "fact", Short: "Fact lookups"}
	factCmd.AddCommand(
		&cobra.Command{
			Use:   "get <id>",
			Short: "Fetch a fact by id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid id: %w", err)
				}
				f, ok, err := getTransport().FetchByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("fact %s not found", id)
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(factJSON(f))
			},
		},
		&cobra.Command{
			Use:   "serial [id]",
			Short: "Print the serial of a fact, or the latest serial without an id",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t := getTransport()
				if len(args) == 0 {
					serial, err := t.LatestSerial(cmd.Context())
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), serial)
					return nil
				}
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid id: %w", err)
				}
				serial, ok, err := t.SerialOf(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("fact %s not found", id)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), serial)
				return nil
			},
		},
	)
	return factCmd
}

// NewInfoCommand constructs the `info` command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the server protocol version and properties",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()
			cfg, err := getTransport().ServerConfig(ctx)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
				"address":    grpcAddrFromEnv(),
				"protocol":   cfg.String(),
				"compatible": cfg.Major == factsvc.CurrentProtocol.Major,
				"properties": cfg.Properties,
				"rtt":        time.Since(start).String(),
			})
		},
	}
}
