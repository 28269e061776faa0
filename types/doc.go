// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供服务器各层共享的基础类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 config、dispatch、
api/handlers 等上层模块提供统一的类型契约，避免循环依赖。

# 核心类型

  - HandlerSpec：location 块描述（name、path、type、options）
  - Error / ErrorCode：结构化错误体系，用于配置与 handler 构建阶段
*/
package types
