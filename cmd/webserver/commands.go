package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/webserver/api/handlers"
	"github.com/BaSui01/webserver/config"
	"github.com/BaSui01/webserver/types"
)

// =============================================================================
// ✅ validate 命令
// =============================================================================

func validateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file and print the route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := checkHandlerTypes(cfg); err != nil {
				return err
			}
			printRoutes(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or nginx-style)")
	return cmd
}

// checkHandlerTypes 确认每个 location 的 handler 类型已注册
func checkHandlerTypes(cfg *config.Config) error {
	reg := handlers.NewRegistry(handlers.NewDeps(zap.NewNop()))

	var unknown []string
	for _, loc := range cfg.Locations {
		if !reg.Has(loc.Type) {
			unknown = append(unknown, fmt.Sprintf("%s (%s)", loc.Path, loc.Type))
		}
	}
	if len(unknown) > 0 {
		return types.NewError(types.ErrUnknownHandler,
			"unknown handler types: "+strings.Join(unknown, ", "))
	}
	return nil
}

// printRoutes 按匹配顺序（location 长度降序）输出路由表
func printRoutes(out io.Writer, cfg *config.Config) {
	routes := append([]types.HandlerSpec(nil), cfg.Locations...)
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Path) > len(routes[j].Path)
	})

	fmt.Fprintf(out, "listen %s\n", cfg.Server.ListenAddr())
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTYPE\tNAME\tOPTIONS")
	for _, r := range routes {
		opts := make([]string, 0, len(r.Options))
		for _, k := range r.OptionKeys() {
			opts = append(opts, k+"="+r.Options[k])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Path, r.Type, r.DisplayName(), strings.Join(opts, " "))
	}
	_ = w.Flush()
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

const healthTimeout = 5 * time.Second

func healthCmd() *cobra.Command {
	var addr, path string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			status, err := probe(ctx, addr, path)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if status != "200" {
				return fmt.Errorf("health check failed: status %s", status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Server address (host:port)")
	cmd.Flags().StringVar(&path, "path", "/health", "Health check path")
	return cmd
}

// probe 发送一个 GET 请求并返回状态行中的状态码。
// 服务端每个响应后都会关闭连接，这里只读取状态行。
func probe(ctx context.Context, addr, path string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, addr)
	if _, err := io.WriteString(conn, req); err != nil {
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return "", fmt.Errorf("malformed status line %q", strings.TrimSpace(line))
	}
	return fields[1], nil
}
