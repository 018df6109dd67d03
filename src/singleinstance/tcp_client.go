package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Send(ctx context.Context, cmd Command) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, 300*time.Millisecond) {
			continue
		}
		return exchange(addr, cmd, deadline)
	}
	return false, "", nil
}

func exchange(addr string, cmd Command, timeout time.Duration) (bool, string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := io.WriteString(conn, string(cmd)+"\n"); err != nil {
		return true, "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return true, "", fmt.Errorf("reading response: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successLine:
		return true, string(body), nil
	case errorLine:
		return true, "", errors.New(string(body))
	default:
		return true, "", fmt.Errorf("unexpected response %q", status)
	}
}
