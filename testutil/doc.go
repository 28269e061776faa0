// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 webserver 测试的共享工具和辅助函数。

# 概述

testutil 包为协议解析、会话与服务器测试提供统一的线上字节构造与
TCP 往返能力，避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 请求构造: RawRequest 按顺序拼装请求行、请求头与请求体，
    Body 自动追加 Content-Length
  - 分片: SplitAt 在任意偏移处切分字节流，用于增量解析测试
  - TCP 往返: RoundTrip 写入请求并读到连接关闭；ReadOnly 只读不写，
    用于观察被拒绝的连接

# 使用示例

	raw := testutil.NewRawRequest("POST", "/echo").Body("hi").String()
	out := testutil.RoundTrip(t, m.Addr(), raw)
*/
package testutil
