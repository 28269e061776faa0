// Package crud 提供 crud 处理器使用的文件系统实体存储。
//
// 布局为 <data_path>/<entity_type>/<id>，内容原样保存；新 ID 取目录内
// 现有最大数字文件名加一。同一目录的 FileManager 经 Provider 共享。
package crud
