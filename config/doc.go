// Package config 提供 webserver 的配置管理功能。
//
// 支持 YAML 与 nginx 风格两种配置文件格式，并允许通过
// WEBSERVER_ 前缀的环境变量覆盖任意标量配置项。
// 路由表（locations）只能来自配置文件。
package config
