// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 links 提供短链服务的持久化层，供 link_manage、link_redirect 与
analytics 三类处理器共享。

# 核心类型

  - Store：创建、读取、更新、幂等删除、解析，以及按短码与按目标 URL
    的访问计数。
  - FileStore：文件系统实现，记录与计数器均以临时文件加 rename 原子写入。
  - SQLStore：gorm 实现，表 links、url_visits、link_counters 由
    AutoMigrate 维护，计数器递增与插入在同一事务内完成。
  - CachedStore：以 cache.LinkCache 为 Resolve 提供读穿缓存，
    更新与删除后失效。
  - Provider：按数据目录或 DSN 共享 Store 实例。

# 短码与密码

短码是持久化计数器（起始值 15000000）的 base62 编码，字母表为
0-9A-Za-z。受保护链接保存 16 字节随机盐与 sha256(salt+password)
的十六进制值，校验见 Authorized。
*/
package links
