package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/spf13/viper"
)

// ConfigMode 配置模式
type ConfigMode string

const (
	// ModeLocal 本地配置模式
	ModeLocal ConfigMode = "local"
	// ModeNacos Nacos配置中心模式
	ModeNacos ConfigMode = "nacos"
)

// NacosConfig Nacos连接配置
type NacosConfig struct {
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	ServerPort uint64 `mapstructure:"server_port" yaml:"server_port"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
	Group      string `mapstructure:"group" yaml:"group"`
	DataID     string `mapstructure:"data_id" yaml:"data_id"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	LogDir     string `mapstructure:"log_dir" yaml:"log_dir"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	TimeoutMs  uint64 `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// Manager 配置管理器
type Manager struct {
	mode        ConfigMode
	nacosClient config_client.IConfigClient
	nacosConfig *NacosConfig
	viper       *viper.Viper
	source      string

	mu        sync.Mutex
	listeners []func()
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	return &Manager{
		viper: viper.New(),
	}
}

// LoadConfig 加载配置
// configPath: 本地配置文件路径（本地模式下为服务配置，Nacos模式下为连接配置）
// serviceName: 服务名称（默认的 Nacos DataID 前缀）
func (m *Manager) LoadConfig(configPath, serviceName string) error {
	mode := GetEnv("CONFIG_MODE", string(ModeLocal))
	m.mode = ConfigMode(strings.ToLower(mode))

	switch m.mode {
	case ModeNacos:
		return m.loadFromNacos(configPath, serviceName)
	case ModeLocal:
		return m.loadFromLocal(configPath)
	default:
		return fmt.Errorf("unsupported config mode: %s", mode)
	}
}

// loadFromLocal 从本地文件加载配置，文件不存在时只使用默认值和环境变量
func (m *Manager) loadFromLocal(configPath string) error {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("⚠️  Config file %s not found, using defaults and environment\n", configPath)
		return nil
	}

	m.source = configPath
	m.viper.SetConfigFile(configPath)
	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read local config failed: %w", err)
	}

	fmt.Printf("✅ Loaded config from local file: %s\n", configPath)
	return nil
}

// loadFromNacos 从Nacos配置中心加载配置
func (m *Manager) loadFromNacos(configPath, serviceName string) error {
	// 1. 从本地文件读取Nacos连接配置
	localViper := viper.New()
	localViper.SetConfigFile(configPath)
	if err := localViper.ReadInConfig(); err != nil {
		return fmt.Errorf("read nacos connection config failed: %w", err)
	}

	m.nacosConfig = &NacosConfig{}
	if err := localViper.UnmarshalKey("nacos", m.nacosConfig); err != nil {
		return fmt.Errorf("unmarshal nacos config failed: %w", err)
	}
	m.nacosConfig.applyEnv(serviceName)

	// 2. 创建Nacos客户端
	serverConfigs := []constant.ServerConfig{
		*constant.NewServerConfig(
			m.nacosConfig.ServerAddr,
			m.nacosConfig.ServerPort,
			constant.WithContextPath("/nacos"),
		),
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithNamespaceId(m.nacosConfig.Namespace),
		constant.WithTimeoutMs(m.nacosConfig.TimeoutMs),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir(m.nacosConfig.LogDir),
		constant.WithCacheDir(m.nacosConfig.CacheDir),
		constant.WithLogLevel(m.nacosConfig.LogLevel),
		constant.WithUsername(m.nacosConfig.Username),
		constant.WithPassword(m.nacosConfig.Password),
	)

	configClient, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return fmt.Errorf("create nacos client failed: %w", err)
	}
	m.nacosClient = configClient

	// 3. 拉取服务配置
	content, err := configClient.GetConfig(vo.ConfigParam{
		DataId: m.nacosConfig.DataID,
		Group:  m.nacosConfig.Group,
	})
	if err != nil {
		return fmt.Errorf("get config from nacos failed: %w", err)
	}

	m.viper.SetConfigType("yaml")
	if err := m.viper.ReadConfig(strings.NewReader(content)); err != nil {
		return fmt.Errorf("parse nacos config failed: %w", err)
	}
	m.source = m.nacosConfig.Group + "/" + m.nacosConfig.DataID

	fmt.Printf("✅ Loaded config from Nacos: %s (namespace: %s)\n", m.source, m.nacosConfig.Namespace)

	// 4. 监听配置变更
	if err := m.watchConfigChange(); err != nil {
		fmt.Printf("⚠️  Watch config change failed: %v\n", err)
	}
	return nil
}

// applyEnv 环境变量覆盖并补齐默认值
func (c *NacosConfig) applyEnv(serviceName string) {
	c.ServerAddr = GetEnv("NACOS_SERVER_ADDR", c.ServerAddr)
	c.Namespace = GetEnv("NACOS_NAMESPACE", c.Namespace)
	c.Group = GetEnv("NACOS_GROUP", c.Group)
	c.DataID = GetEnv("NACOS_DATA_ID", c.DataID)
	c.Username = GetEnv("NACOS_USERNAME", c.Username)
	c.Password = GetEnv("NACOS_PASSWORD", c.Password)

	if c.DataID == "" {
		c.DataID = serviceName + ".yaml"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 8848
	}
	if c.Group == "" {
		c.Group = "DEFAULT_GROUP"
	}
	if c.LogDir == "" {
		c.LogDir = "/tmp/nacos/log"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/tmp/nacos/cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 5000
	}
}

// watchConfigChange 监听配置变更
func (m *Manager) watchConfigChange() error {
	return m.nacosClient.ListenConfig(vo.ConfigParam{
		DataId: m.nacosConfig.DataID,
		Group:  m.nacosConfig.Group,
		OnChange: func(namespace, group, dataId, data string) {
			fmt.Printf("🔄 Config changed: %s/%s\n", group, dataId)
			m.viper.SetConfigType("yaml")
			if err := m.viper.ReadConfig(strings.NewReader(data)); err != nil {
				fmt.Printf("❌ Reload config failed: %v\n", err)
				return
			}
			m.notify()
		},
	})
}

// OnChange 注册配置变更回调（仅 Nacos 模式会触发）
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify() {
	m.mu.Lock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Unmarshal 解析配置到结构体
func (m *Manager) Unmarshal(rawVal interface{}) error {
	return m.viper.Unmarshal(rawVal)
}

// GetString 获取字符串配置
func (m *Manager) GetString(key string) string {
	return m.viper.GetString(key)
}

// IsSet 检查key是否被设置
func (m *Manager) IsSet(key string) bool {
	return m.viper.IsSet(key)
}

// GetMode 获取配置模式
func (m *Manager) GetMode() ConfigMode {
	return m.mode
}

// Source 配置来源（文件路径或 Nacos group/dataId），未加载文件时为空
func (m *Manager) Source() string {
	return m.source
}

// Close 关闭配置管理器
func (m *Manager) Close() error {
	if m.nacosClient != nil {
		return m.nacosClient.CancelListenConfig(vo.ConfigParam{
			DataId: m.nacosConfig.DataID,
			Group:  m.nacosConfig.Group,
		})
	}
	return nil
}
